package dlipower

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRelay emulates the login flow and pages of a DIN III web interface.
type fakeRelay struct {
	mu          sync.Mutex
	username    string
	password    string
	challenge   bool
	names       []string
	states      []bool
	sessions    map[string]bool
	logins      int
	statusCalls int
	commands    []string
	statusDelay time.Duration
}

func newFakeRelay(names []string, states []bool) *fakeRelay {
	return &fakeRelay{
		username:  "admin",
		password:  "admin",
		challenge: true,
		names:     names,
		states:    states,
		sessions:  map[string]bool{},
	}
}

func (f *fakeRelay) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleRoot)
	mux.HandleFunc("/login.tgi", f.handleLogin)
	mux.HandleFunc("/index.htm", f.handleStatus)
	mux.HandleFunc("/outlet", f.handleOutlet)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeRelay) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]bool{}
}

func (f *fakeRelay) loginPage() string {
	return `<html><body><form action="/login.tgi" method="post">
<input type="text" name="Username" value="">
<input type="password" name="Password" value="">
<input type="hidden" name="Challenge" value="abc123">
</form></body></html>`
}

func (f *fakeRelay) statusPage() string {
	var sb strings.Builder
	sb.WriteString(`<html><body><table><tr><th>#</th><th>Name</th><th>State</th><th>Action</th><th></th></tr>`)
	for i := range f.names {
		state := `<font color=red>OFF</font>`
		if f.states[i] {
			state = `<font color=green>ON</font>`
		}
		sb.WriteString(fmt.Sprintf(`<tr bgcolor="#F4F4F4"><td align=center>%d</td>
<td>%s</td><td><b>%s</b></td><td><a href=outlet?%d=ON>Switch ON</a></td>
<td><a href=outlet?%d=CCL>Cycle</a></td></tr>`, i+1, f.names[i], state, i+1, i+1))
	}
	sb.WriteString(`</table></body></html>`)
	return sb.String()
}

func (f *fakeRelay) authorized(r *http.Request) bool {
	if !f.challenge {
		user, pass, ok := r.BasicAuth()
		return ok && user == f.username && pass == f.password
	}
	c, err := r.Cookie("DLILPC")
	return err == nil && f.sessions[c.Value]
}

func (f *fakeRelay) handleRoot(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.challenge {
		fmt.Fprint(w, `<html><body>DIN III</body></html>`)
		return
	}
	fmt.Fprint(w, f.loginPage())
}

func (f *fakeRelay) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = r.ParseForm()
	f.logins++
	if r.PostForm.Get("Password") != ChallengeResponse("abc123", f.username, f.password) {
		fmt.Fprint(w, f.loginPage())
		return
	}
	session := strconv.Itoa(f.logins)
	f.sessions[session] = true
	http.SetCookie(w, &http.Cookie{Name: "DLILPC", Value: session, Path: "/"})
	fmt.Fprint(w, `<html><body>ok</body></html>`)
}

func (f *fakeRelay) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.statusDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		if !f.challenge {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, f.loginPage())
		return
	}
	f.statusCalls++
	fmt.Fprint(w, f.statusPage())
}

func (f *fakeRelay) handleOutlet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(r) {
		fmt.Fprint(w, f.loginPage())
		return
	}
	f.commands = append(f.commands, r.URL.RawQuery)
	parts := strings.SplitN(r.URL.RawQuery, "=", 2)
	index, err := strconv.Atoi(parts[0])
	if err != nil || index < 1 || index > len(f.states) || len(parts) != 2 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	switch parts[1] {
	case "ON":
		f.states[index-1] = true
	case "OFF":
		f.states[index-1] = false
	case "CCL":
		f.states[index-1] = true
	}
	fmt.Fprint(w, f.statusPage())
}
