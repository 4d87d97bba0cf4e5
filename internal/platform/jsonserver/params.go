package jsonserver

import (
	"net/url"
	"strconv"
)

// Sort orders understood by the collaborator.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Params builds JSON-Server query strings. Empty values are skipped.
type Params struct {
	values url.Values
}

// NewParams returns an empty parameter set.
func NewParams() Params {
	return Params{values: url.Values{}}
}

func (p Params) ensure() Params {
	if p.values == nil {
		p.values = url.Values{}
	}
	return p
}

// Eq adds an equality filter <field>=<value>.
func (p Params) Eq(field, value string) Params {
	p = p.ensure()
	if value != "" {
		p.values.Set(field, value)
	}
	return p
}

// Like adds a substring filter <field>_like=<value>.
func (p Params) Like(field, value string) Params {
	p = p.ensure()
	if value != "" {
		p.values.Set(field+"_like", value)
	}
	return p
}

// Sort adds _sort/_order.
func (p Params) Sort(field, order string) Params {
	p = p.ensure()
	if field == "" {
		return p
	}
	p.values.Set("_sort", field)
	if order == OrderAsc || order == OrderDesc {
		p.values.Set("_order", order)
	}
	return p
}

// Page adds _page/_limit when both are positive.
func (p Params) Page(page, limit int) Params {
	p = p.ensure()
	if page > 0 && limit > 0 {
		p.values.Set("_page", strconv.Itoa(page))
		p.values.Set("_limit", strconv.Itoa(limit))
	}
	return p
}

// Values exposes the encoded parameters.
func (p Params) Values() url.Values {
	if p.values == nil {
		return url.Values{}
	}
	return p.values
}
