package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/terra-clan/evalboard/internal/dashboard"
	"github.com/terra-clan/evalboard/pkg/client"
)

const helpText = `commands:
  langs                      list languages
  lang <language>            select a language
  area <product area>        select a product area
  tag <region tag>           select a region tag and show its details
  filter area|tag [text]     filter a list (no text clears the filter)
  sort area|tag [key]        sort a list: name, count-asc, count-desc, score-asc, score-desc
  show                       print the current lists
  link                       print a deep link to the current selection
  open <deep link>           restore a selection from a deep link
  help                       show this help
  quit                       exit
`

// shell is a line-oriented browser over the dashboard controller
type shell struct {
	api     *client.Client
	ctrl    *dashboard.Controller
	baseURL string
	out     io.Writer
}

func newShell(api *client.Client, baseURL string, out io.Writer) *shell {
	return &shell{
		api:     api,
		ctrl:    dashboard.NewController(api),
		baseURL: baseURL,
		out:     out,
	}
}

// run reads commands until EOF or quit
func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line != "" {
			if err := s.exec(ctx, line); err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *shell) prompt() {
	sel := s.ctrl.Selection()
	parts := []string{}
	for _, p := range []string{sel.Language, sel.ProductArea, sel.RegionTag} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	fmt.Fprintf(s.out, "evalboard[%s]> ", strings.Join(parts, " / "))
}

// exec runs one command line
func (s *shell) exec(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "help":
		fmt.Fprint(s.out, helpText)
		return nil
	case "langs":
		return s.languages(ctx)
	case "lang":
		if err := s.ctrl.SelectLanguage(ctx, arg); err != nil {
			return err
		}
		s.showAreas()
		return nil
	case "area":
		if err := s.ctrl.SelectProductArea(ctx, arg); err != nil {
			return err
		}
		s.showTags()
		return nil
	case "tag":
		if _, err := s.ctrl.SelectRegionTag(ctx, arg); err != nil {
			return err
		}
		return s.showDetail(ctx)
	case "filter":
		return s.listSetting(arg, s.ctrl.SetProductAreaFilter, s.ctrl.SetRegionTagFilter)
	case "sort":
		return s.listSetting(arg,
			func(v string) { s.ctrl.SetProductAreaSort(dashboard.SortKey(v)) },
			func(v string) { s.ctrl.SetRegionTagSort(dashboard.SortKey(v)) },
		)
	case "show":
		s.showAreas()
		s.showTags()
		return nil
	case "link":
		link, err := s.ctrl.DeepLink(s.baseURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, link)
		return nil
	case "open":
		return s.open(ctx, arg)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *shell) languages(ctx context.Context) error {
	langs, err := s.ctrl.Languages(ctx)
	if err != nil {
		return err
	}
	if len(langs) == 0 {
		fmt.Fprintln(s.out, "no languages found")
	}
	for _, l := range langs {
		fmt.Fprintf(s.out, "  %-12s %s\n", l, dashboard.DisplayLanguage(l))
	}
	return nil
}

// listSetting applies "area <value>" or "tag <value>" to the matching setter
func (s *shell) listSetting(arg string, area, tag func(string)) error {
	level, value, _ := strings.Cut(arg, " ")
	value = strings.TrimSpace(value)

	switch level {
	case "area":
		area(value)
		s.showAreas()
	case "tag":
		tag(value)
		s.showTags()
	default:
		return errors.New("expected area or tag")
	}
	return nil
}

func (s *shell) open(ctx context.Context, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	if _, err := s.ctrl.Restore(ctx, dashboard.SelectionFromQuery(u.Query())); err != nil {
		return err
	}
	return s.showDetail(ctx)
}

func (s *shell) showAreas() {
	v := s.ctrl.ProductAreaView()
	fmt.Fprintln(s.out, "Product areas:")
	if v.Placeholder != "" {
		printPlaceholder(s.out, v.Placeholder, v.Err)
		return
	}
	for _, a := range v.Items {
		fmt.Fprintf(s.out, "  %-32s samples=%-4d score=%v (%s)\n", a.Name, a.Samples, a.Score, dashboard.ScoreBand(a.Score))
	}
}

func (s *shell) showTags() {
	v := s.ctrl.RegionTagView()
	fmt.Fprintln(s.out, "Region tags:")
	if v.Placeholder != "" {
		printPlaceholder(s.out, v.Placeholder, v.Err)
		return
	}
	for _, t := range v.Items {
		fmt.Fprintf(s.out, "  %-48s score=%v (%s)\n", t.Name, t.Score, dashboard.ScoreBand(t.Score))
	}
}

func (s *shell) showDetail(ctx context.Context) error {
	detail, err := s.ctrl.Detail()
	if err != nil {
		return err
	}
	if detail == nil {
		fmt.Fprintln(s.out, dashboard.PlaceholderSelectTag)
		return nil
	}
	return dashboard.Render(ctx, detail, s.api).WriteText(s.out)
}

func printPlaceholder(w io.Writer, placeholder string, err error) {
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", placeholder, err)
		return
	}
	fmt.Fprintf(w, "  %s\n", placeholder)
}
