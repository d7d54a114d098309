package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/coder/serpent"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/buildinfo"
	"github.com/openclaw/dashboard/dashsdk"
)

func (r *RootCmd) version() *serpent.Command {
	var (
		out    outputFlag
		server bool
	)
	return &serpent.Command{
		Use:        "version",
		Short:      "Show the dashboard version",
		Middleware: serpent.RequireNArgs(0),
		Options: serpent.OptionSet{
			out.option(),
			{
				Name:        "Server",
				Flag:        "server",
				Description: "Also ask the server at --url for its version.",
				Value:       serpent.BoolOf(&server),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			infos := map[string]dashsdk.BuildInfoResponse{"client": clientBuildInfo()}
			if server {
				client, err := r.client()
				if err != nil {
					return err
				}
				info, err := client.BuildInfo(inv.Context())
				if err != nil {
					return xerrors.Errorf("fetch server version: %w", err)
				}
				infos["server"] = info
			}

			if out.format == formatJSON {
				if !server {
					return writeJSON(inv.Stdout, infos["client"])
				}
				return writeJSON(inv.Stdout, infos)
			}
			printBuildInfo(inv.Stdout, "OpenClaw dashboard", infos["client"])
			if info, ok := infos["server"]; ok {
				printBuildInfo(inv.Stdout, "Server", info)
			}
			return nil
		},
	}
}

func clientBuildInfo() dashsdk.BuildInfoResponse {
	info := dashsdk.BuildInfoResponse{
		Version:     buildinfo.Version(),
		ExternalURL: buildinfo.ExternalURL(),
		Dev:         buildinfo.IsDev(),
	}
	if t, ok := buildinfo.Time(); ok {
		info.BuildTime = &t
	}
	return info
}

func printBuildInfo(w io.Writer, label string, info dashsdk.BuildInfoResponse) {
	_, _ = fmt.Fprintf(w, "%s %s", label, info.Version)
	if info.BuildTime != nil {
		_, _ = fmt.Fprintf(w, " %s", info.BuildTime.Format(time.UnixDate))
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", info.ExternalURL)
}
