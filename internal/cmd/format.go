package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/berfenger/dinrelay2mqtt/internal/server"

	"gopkg.in/yaml.v3"
)

type DataFormat string

const (
	FORMAT_LIST DataFormat = "list"
	FORMAT_JSON DataFormat = "json"
	FORMAT_YAML DataFormat = "yaml"
)

func (df DataFormat) String() string {
	return string(df)
}

func (df *DataFormat) Set(v string) error {
	switch DataFormat(v) {
	case FORMAT_LIST, FORMAT_JSON, FORMAT_YAML:
		*df = DataFormat(v)
		return nil
	default:
		return fmt.Errorf("must be one of %v", []DataFormat{
			FORMAT_LIST, FORMAT_JSON, FORMAT_YAML,
		})
	}
}

func (df DataFormat) Type() string {
	return "DataFormat"
}

// printOutlets writes outlets to w formatted as outFormat.
func printOutlets(w io.Writer, outlets []server.OutletView, outFormat DataFormat) error {
	switch outFormat {
	case FORMAT_JSON:
		bytes, err := json.MarshalIndent(outlets, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outlets into JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", bytes)
		return err
	case FORMAT_YAML:
		bytes, err := yaml.Marshal(outlets)
		if err != nil {
			return fmt.Errorf("failed to marshal outlets into YAML: %w", err)
		}
		_, err = w.Write(bytes)
		return err
	case FORMAT_LIST:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tNAME\tUNIQUE ID\tSTATE")
		for _, o := range outlets {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.Index, o.Name, o.UniqueId, o.State)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown data format: %s", outFormat)
	}
}
