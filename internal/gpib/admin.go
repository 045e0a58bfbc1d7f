package gpib

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var consoleTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/console.html.tmpl"))

// AttachAdminRoutes attaches a bus console to the tsweb debug page served at
// /debug/. The console writes or queries an arbitrary address, which is
// useful when bringing up a new instrument. While busy reports true the
// instruments belong to a running sweep and commands are refused with 409.
// A nil busy never refuses.
func (c *Controller) AttachAdminRoutes(mux *http.ServeMux, busy func() bool) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("gpib", "send commands to GPIB instruments", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := consoleTemplate.Execute(buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("gpib-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		addr, err := ParseAddress(r.FormValue("address"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if busy != nil && busy() {
			http.Error(w, "Instruments are in use by a running sweep", http.StatusConflict)
			return
		}

		if r.FormValue("query") != "" {
			reply, err := c.Query(addr, command)
			if err != nil {
				http.Error(w, fmt.Sprintf("Query failed: %v", err), http.StatusBadGateway)
				return
			}
			io.WriteString(w, reply)
			return
		}
		if err := c.Write(addr, command); err != nil {
			http.Error(w, fmt.Sprintf("Write failed: %v", err), http.StatusBadGateway)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to address %d", command, addr))
	})
}
