package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/ppiankov/wikiner/internal/model"
)

// Organization properties
const (
	PropOfficialLanguage = "P37"
	PropInception        = "P571"
	PropHeadquarters     = "P159"
	PropOfficialWebsite  = "P856"
	PropFounder          = "P112"
	PropCEO              = "P169"
)

func registerOrganization(r *Registry) {
	r.Register(model.CategoryOrganization, "official_language", entityList(PropOfficialLanguage))
	r.Register(model.CategoryOrganization, "inception", firstDate(PropInception))
	r.Register(model.CategoryOrganization, "hq_location", firstEntity(PropHeadquarters))
	r.Register(model.CategoryOrganization, "official_website", OfficialWebsite)
	r.Register(model.CategoryOrganization, "founder", entityList(PropFounder))
	r.Register(model.CategoryOrganization, "ceo", entityList(PropCEO))
	r.Register(model.CategoryOrganization, "country", entityList(PropCountry))
	r.Register(model.CategoryOrganization, "instance_of", entityList(model.PropInstanceOf))
	r.Register(model.CategoryOrganization, "organization_type", AuxTypes)
}

// OfficialWebsite returns the first official website with its host in
// lower-case ASCII form
func OfficialWebsite(it *model.Item, _ *Aux) (any, bool) {
	for _, dv := range it.Values(PropOfficialWebsite) {
		raw, ok := dv.String()
		if !ok {
			continue
		}
		if site := NormalizeWebsite(raw); site != "" {
			return site, true
		}
	}
	return nil, false
}

// NormalizeWebsite lower-cases the scheme and host and converts an
// internationalised host to punycode. Unparseable input is returned trimmed.
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)

	host := u.Hostname()
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		ascii = strings.ToLower(host)
	}
	if port := u.Port(); port != "" {
		ascii += ":" + port
	}
	u.Host = ascii
	return u.String()
}
