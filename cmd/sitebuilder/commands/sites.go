package commands

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/sitebuilder/internal/templates"
)

// SitesCmd implements the 'sites' command.
type SitesCmd struct {
	JSON bool `help:"Print the site table as JSON"`
}

func (s *SitesCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, false)
	if err != nil {
		return err
	}
	if s.JSON {
		return printJSON(g.out(), cfg.Sites)
	}
	if len(cfg.Sites) == 0 {
		_, err := fmt.Fprintln(g.out(), "No sites configured")
		return err
	}

	known := templates.NewRegistry(cfg.Templates, g.logger()).IDs()
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DOMAIN\tNAME\tTEMPLATE\tKEYWORDS")
	for _, site := range cfg.Sites {
		template := site.Template
		switch {
		case template == "":
			template = cfg.Templates.Default + " (default)"
		case template != cfg.Templates.Default && !slices.Contains(known, template):
			template += " (unknown, uses " + cfg.Templates.Default + ")"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", site.Domain, site.SiteName, template, strings.Join(site.Keywords, ","))
	}
	return tw.Flush()
}
