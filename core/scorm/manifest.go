package scorm

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const manifestName = "imsmanifest.xml"

var (
	errManifestMissing = errors.New("imsmanifest.xml missing in SCORM package")
	errNoOrganization  = errors.New("no <organization> found in manifest")
	errNoScos          = errors.New("manifest parsed but no launchable SCOs found")
)

// Element names are matched regardless of their namespace, so that SCORM 1.2 and 2004 manifests parse alike.
type (
	manifest struct {
		Organizations struct {
			Default       string         `xml:"default,attr"`
			Organizations []organization `xml:"organization"`
		} `xml:"organizations"`
		Resources []resource `xml:"resources>resource"`
	}

	organization struct {
		Identifier string `xml:"identifier,attr"`
		Items      []item `xml:"item"`
	}

	item struct {
		IdentifierRef string  `xml:"identifierref,attr"`
		Base          string  `xml:"http://www.w3.org/XML/1998/namespace base,attr"`
		Title         *string `xml:"title"`
		Items         []item  `xml:"item"`
	}

	resource struct {
		Identifier string  `xml:"identifier,attr"`
		Href       *string `xml:"href,attr"`
		Base       string  `xml:"http://www.w3.org/XML/1998/namespace base,attr"`
	}
)

// normalizeHref resolves href against base, the way a browser would resolve a relative launch path.
func normalizeHref(base string, href *string) string {
	if href == nil {
		return ""
	}
	joined := *href
	if !strings.HasPrefix(joined, "/") {
		joined = base + "/" + joined
		if base == "" {
			joined = *href
		}
	}
	cleaned := strings.TrimLeft(path.Clean(joined), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}

func (m *manifest) defaultOrganization() *organization {
	orgs := m.Organizations.Organizations
	if len(orgs) == 0 {
		return nil
	}
	if def := m.Organizations.Default; def != "" {
		for i := range orgs {
			if orgs[i].Identifier == def {
				return &orgs[i]
			}
		}
		return nil
	}
	return &orgs[0]
}

// walkItems calls fn on every item in document order, parents before their children.
func walkItems(items []item, fn func(itm item)) {
	for _, itm := range items {
		fn(itm)
		walkItems(itm.Items, fn)
	}
}

// parseManifest reads an imsmanifest.xml document and returns the launchable SCOs of its default organization.
// Returned SCOs have no ID nor PackageID.
func parseManifest(r io.Reader) ([]Sco, error) {
	var m manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	type res struct {
		href *string
		base string
	}
	resources := make(map[string]res, len(m.Resources))
	for _, rs := range m.Resources {
		resources[rs.Identifier] = res{href: rs.Href, base: rs.Base}
	}

	org := m.defaultOrganization()
	if org == nil {
		return nil, errNoOrganization
	}

	var scos []Sco
	walkItems(org.Items, func(itm item) {
		if itm.IdentifierRef == "" {
			return // non-launchable parent item
		}
		rs, ok := resources[itm.IdentifierRef]
		if !ok || normalizeHref(rs.base, rs.href) == "" {
			return
		}
		title := fmt.Sprintf("SCO %d", len(scos)+1)
		if itm.Title != nil {
			title = strings.TrimSpace(*itm.Title)
		}
		scos = append(scos, Sco{
			Identifier: itm.IdentifierRef,
			LaunchURL:  normalizeHref(joinBase(rs.base, itm.Base), rs.href),
			Title:      title,
			Sequence:   len(scos),
		})
	})

	if len(scos) == 0 {
		return nil, errNoScos
	}
	return scos, nil
}

func joinBase(base, sub string) string {
	switch {
	case sub == "":
		return base
	case base == "" || strings.HasPrefix(sub, "/"):
		return sub
	}
	return strings.TrimSuffix(base, "/") + "/" + sub
}
