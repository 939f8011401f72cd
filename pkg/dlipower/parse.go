package dlipower

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var errNoOutletTable = errors.New("no outlet table found in status page")

// ParseStatusPage extracts the outlet table of index.htm. Outlet rows have
// five cells: number, name, state and two action links.
func ParseStatusPage(r io.Reader) (domain.StatusSnapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var snapshot domain.StatusSnapshot
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Tr {
			return true
		}
		cells := childCells(n)
		if len(cells) != 5 {
			return true
		}
		index, err := strconv.Atoi(nodeText(cells[0]))
		if err != nil || index < 1 {
			return true
		}
		snapshot = append(snapshot, domain.OutletState{
			Index: index,
			Label: nodeText(cells[1]),
			State: domain.ParsePowerState(nodeText(cells[2])),
		})
		return false
	})

	if len(snapshot) == 0 {
		return nil, errNoOutletTable
	}
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Index < snapshot[j].Index
	})
	for i := range snapshot {
		if snapshot[i].Index != i+1 {
			return nil, fmt.Errorf("outlet table is not contiguous: expected outlet %d, found %d", i+1, snapshot[i].Index)
		}
	}
	return snapshot, nil
}

// ParseFormInputs returns name => value of every input element.
func ParseFormInputs(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom == atom.Input {
			name := attr(n, "name")
			if name != "" {
				fields[name] = attr(n, "value")
			}
		}
		return true
	})
	return fields, nil
}

// walk visits n depth first, fn returns false to skip the children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func childCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
