// Package sitemap writes the sitemap index and its per-section sitemaps with
// hreflang alternates for every locale.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/routes"
)

// MaxURLs is the sitemap protocol limit of <url> elements per file.
const MaxURLs = 50000

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	xhtmlNS   = "http://www.w3.org/1999/xhtml"
)

type hint struct {
	changefreq string
	priority   string
}

var pageHints = map[string]hint{
	"/":            {"daily", "1.0"},
	"/browse":      {"daily", "0.9"},
	"/about":       {"monthly", "0.6"},
	"/bookmarks":   {"weekly", "0.5"},
	"/my-learning": {"weekly", "0.5"},
}

var (
	categoryHint = hint{"weekly", "0.8"}
	entryHint    = hint{"monthly", "0.7"}
	defaultHint  = hint{"weekly", "0.5"}
)

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	XHTML   string   `xml:"xmlns:xhtml,attr"`
	URLs    []url    `xml:"url"`
}

type url struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
	Links      []link `xml:"xhtml:link"`
}

type link struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

type sitemapIndex struct {
	XMLName  xml.Name   `xml:"sitemapindex"`
	XMLNS    string     `xml:"xmlns,attr"`
	Sitemaps []indexRef `xml:"sitemap"`
}

type indexRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// CategoryGroup is one category and its entry ids in merge order.
type CategoryGroup struct {
	ID       string
	EntryIDs []string
}

// Input configures Write.
type Input struct {
	SiteURL string
	Locales []config.Locale
	Groups  []CategoryGroup
	Now     time.Time
}

// Result lists the written sitemap files.
type Result struct {
	Files []string
	URLs  int
}

// Write writes sitemap.xml, sitemap-pages.xml, sitemap-categories.xml and one
// sitemap-entry-<categoryId>.xml per non-empty category. Categories above
// MaxURLs continue in sitemap-entry-<categoryId>-2.xml and so on.
func Write(ctx context.Context, w *artifact.Writer, in Input) (*Result, error) {
	if in.SiteURL == "" {
		return nil, errors.NewInvalidConfig("site_url", "required for sitemaps")
	}
	if len(in.Locales) == 0 {
		return nil, errors.NewInvalidConfig("locales", "at least one locale is required")
	}
	base := strings.TrimSuffix(in.SiteURL, "/")
	res := &Result{}
	var files []string

	write := func(name string, paths []string, h func(string) hint) error {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("sitemaps")
		}
		data, err := renderURLSet(base, in.Locales, paths, h)
		if err != nil {
			return err
		}
		if err := w.WriteFile(name, data); err != nil {
			return err
		}
		files = append(files, name)
		res.URLs += len(paths)
		return nil
	}

	if err := write("sitemap-pages.xml", routes.StaticPages, func(p string) hint {
		if h, ok := pageHints[p]; ok {
			return h
		}
		return defaultHint
	}); err != nil {
		return nil, err
	}

	categoryPaths := make([]string, len(in.Groups))
	for i, g := range in.Groups {
		categoryPaths[i] = routes.CategoryPath(g.ID)
	}
	if err := write("sitemap-categories.xml", categoryPaths, func(string) hint { return categoryHint }); err != nil {
		return nil, err
	}

	for _, g := range in.Groups {
		if len(g.EntryIDs) == 0 {
			continue
		}
		if err := artifact.CheckKey("category id", g.ID); err != nil {
			return nil, err
		}
		for part := 0; part*MaxURLs < len(g.EntryIDs); part++ {
			ids := g.EntryIDs[part*MaxURLs : min((part+1)*MaxURLs, len(g.EntryIDs))]
			paths := make([]string, len(ids))
			for i, id := range ids {
				paths[i] = routes.EntryPath(id)
			}
			if err := write(entrySitemapName(g.ID, part), paths, func(string) hint { return entryHint }); err != nil {
				return nil, err
			}
		}
	}

	index := sitemapIndex{XMLNS: sitemapNS}
	lastmod := in.Now.UTC().Format(time.DateOnly)
	for _, f := range files {
		index.Sitemaps = append(index.Sitemaps, indexRef{Loc: base + "/" + f, LastMod: lastmod})
	}
	data, err := marshal(index)
	if err != nil {
		return nil, err
	}
	if err := w.WriteFile("sitemap.xml", data); err != nil {
		return nil, err
	}

	res.Files = append([]string{"sitemap.xml"}, files...)
	return res, nil
}

func entrySitemapName(categoryID string, part int) string {
	if part == 0 {
		return "sitemap-entry-" + categoryID + ".xml"
	}
	return fmt.Sprintf("sitemap-entry-%s-%d.xml", categoryID, part+1)
}

func renderURLSet(base string, locales []config.Locale, paths []string, h func(string) hint) ([]byte, error) {
	set := urlset{XMLNS: sitemapNS, XHTML: xhtmlNS, URLs: make([]url, 0, len(paths))}
	for _, p := range paths {
		hh := h(p)
		def := base + routes.Localize(locales[0], p)
		u := url{Loc: def, ChangeFreq: hh.changefreq, Priority: hh.priority}
		for _, l := range locales {
			u.Links = append(u.Links, link{Rel: "alternate", Hreflang: l.Code, Href: base + routes.Localize(l, p)})
		}
		u.Links = append(u.Links, link{Rel: "alternate", Hreflang: "x-default", Href: def})
		set.URLs = append(set.URLs, u)
	}
	return marshal(set)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("encode sitemap: %w", err))
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewInternal(err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
