// Package version reports build metadata. Version, Commit and BuildDate are
// set with -ldflags "-X"; VCS settings embedded by the toolchain fill in
// whatever the linker flags left empty.
package version

import (
	"runtime/debug"
)

// AppName identifies the service in logs, traces, metrics and the user agent.
const AppName = "go-microservice-template"

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate string
	VCSDirty  *bool
)

type Info struct {
	AppName   string `json:"app_name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	VCSDirty  *bool  `json:"vcs_dirty,omitempty"`
}

func Get() Info {
	out := Info{
		AppName:   AppName,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		VCSDirty:  VCSDirty,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" && s.Value != "" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.BuildDate == "" {
				out.BuildDate = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" || s.Value == "false" {
				dirty := s.Value == "true"
				out.VCSDirty = &dirty
			}
		}
	}
	return out
}

// UserAgent is sent on outbound connections, e.g.
// "go-microservice-template/1.4.0".
func UserAgent() string { return AppName + "/" + Version }
