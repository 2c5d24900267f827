package catalog

import (
	"fmt"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/plan"
)

// HoldingCompany is the group company every subsidiary reports to.
const HoldingCompany = "Galaxy Holding"

// CompanyConfig describes one company.
type CompanyConfig struct {
	CompanyName     string
	Abbr            string
	Domain          string
	Country         string
	DefaultCurrency string
	IsGroup         bool
	ParentCompany   string
}

// NewCompany returns a Spanish, EUR-denominated company config.
func NewCompany(name, abbr, domain string) CompanyConfig {
	return CompanyConfig{
		CompanyName:     name,
		Abbr:            abbr,
		Domain:          domain,
		Country:         "Spain",
		DefaultCurrency: "EUR",
	}
}

// Subsidiary returns a company owned by the holding.
func Subsidiary(name, abbr, domain string) CompanyConfig {
	c := NewCompany(name, abbr, domain)
	c.ParentCompany = HoldingCompany
	return c
}

// GalaxyCompanies is the operating company structure.
var GalaxyCompanies = []CompanyConfig{
	func() CompanyConfig {
		c := NewCompany(HoldingCompany, "GH", "Services")
		c.IsGroup = true
		return c
	}(),
	Subsidiary("Galaxy Bio", "GB", "Manufacturing"),
	Subsidiary("Galaxy Software", "GS", "Services"),
}

// FutureCompanies are placeholders created inactive for later expansion.
var FutureCompanies = []CompanyConfig{
	Subsidiary("Galaxy Pay", "GP", "Services"),
	Subsidiary("Galaxy Financial", "GF", "Services"),
	Subsidiary("Asterion Capital", "AC", "Services"),
	Subsidiary("Sygma Insurance", "SI", "Services"),
	Subsidiary("Galaxy Tower", "GT", "Services"),
	Subsidiary("Galaxy Engineering", "GE", "Manufacturing"),
	Subsidiary("Galaxy Flash", "GFL", "Services"),
}

// CompaniesOptions configures the company plan.
type CompaniesOptions struct {
	// SkipFuture omits the placeholder companies.
	SkipFuture bool

	// Today is the establishment date stamped on new companies (YYYY-MM-DD).
	Today string

	// Companies and Future override the default datasets when non-nil.
	Companies []CompanyConfig
	Future    []CompanyConfig
}

// Companies builds the company structure plan: operating companies,
// their default cost center, warehouse and intercompany accounts, and
// optionally the inactive placeholders.
func Companies(opts CompaniesOptions) *plan.Plan {
	companies := opts.Companies
	if companies == nil {
		companies = GalaxyCompanies
	}
	future := opts.Future
	if future == nil {
		future = FutureCompanies
	}

	p := &plan.Plan{
		Name:        "companies",
		Description: "Galaxy Holding company structure",
	}

	var records, defaults []ir.RecordSpec
	for _, c := range companies {
		records = append(records, companySpec(c, opts.Today))
		defaults = append(defaults, companyDefaults(c)...)
	}
	p.Batches = append(p.Batches,
		plan.Batch{Name: "companies", Records: records},
		plan.Batch{Name: "company-defaults", Records: defaults},
	)

	if !opts.SkipFuture && len(future) > 0 {
		var placeholders []ir.RecordSpec
		for _, c := range future {
			placeholders = append(placeholders, placeholderSpec(c, opts.Today))
		}
		p.Batches = append(p.Batches, plan.Batch{Name: "future-companies", Records: placeholders})
	}
	return p
}

func (c CompanyConfig) body() ir.Fields {
	return ir.NewFields(
		ir.F("abbr", ir.Str(c.Abbr)),
		ir.F("domain", ir.Str(c.Domain)),
		ir.F("country", ir.Str(c.Country)),
		ir.F("default_currency", ir.Str(c.DefaultCurrency)),
		ir.F("is_group", flag(c.IsGroup)),
		ir.F("parent_company", ir.Str(c.ParentCompany)),
	)
}

func establishment(today string) ir.Fields {
	if today == "" {
		return nil
	}
	return ir.NewFields(
		ir.F("date_of_establishment", ir.Str(today)),
		ir.F("date_of_incorporation", ir.Str(today)),
	)
}

func companySpec(c CompanyConfig, today string) ir.RecordSpec {
	return ir.RecordSpec{
		Kind:       "Company",
		Lookup:     ir.NewFields(ir.F("company_name", ir.Str(c.CompanyName))),
		Desired:    c.body(),
		CreateOnly: establishment(today),
	}
}

// placeholderSpec creates the company inactive and never touches it again.
func placeholderSpec(c CompanyConfig, today string) ir.RecordSpec {
	if c.ParentCompany == "" {
		c.ParentCompany = HoldingCompany
	}
	createOnly := c.body().Merge(establishment(today))
	createOnly["is_active"] = ir.Int(0)
	return ir.RecordSpec{
		Kind:       "Company",
		Lookup:     ir.NewFields(ir.F("company_name", ir.Str(c.CompanyName))),
		CreateOnly: createOnly,
	}
}

// companyDefaults returns the cost center, warehouse and, for
// subsidiaries, the intercompany receivable and payable accounts.
func companyDefaults(c CompanyConfig) []ir.RecordSpec {
	company := ir.Str(c.CompanyName)
	specs := []ir.RecordSpec{
		{
			Kind: "Cost Center",
			Lookup: ir.NewFields(
				ir.F("company", company),
				ir.F("cost_center_name", ir.Str("Main")),
			),
			Desired: ir.NewFields(ir.F("is_group", ir.Int(0))),
		},
		{
			Kind: "Warehouse",
			Lookup: ir.NewFields(
				ir.F("company", company),
				ir.F("warehouse_name", ir.Str("Main Warehouse")),
			),
			Desired: ir.NewFields(ir.F("is_group", ir.Int(0))),
		},
	}
	if c.CompanyName == HoldingCompany {
		return specs
	}

	for _, acc := range []struct{ name, parent, typ string }{
		{"Intercompany Receivable", "Accounts Receivable", "Receivable"},
		{"Intercompany Payable", "Accounts Payable", "Payable"},
	} {
		specs = append(specs, ir.RecordSpec{
			Kind: "Account",
			Lookup: ir.NewFields(
				ir.F("company", company),
				ir.F("account_name", ir.Str(acc.name)),
			),
			Desired: ir.NewFields(
				ir.F("parent_account", ir.Str(fmt.Sprintf("%s - %s", acc.parent, c.Abbr))),
				ir.F("account_type", ir.Str(acc.typ)),
				ir.F("account_currency", ir.Str("EUR")),
			),
		})
	}
	return specs
}

func flag(b bool) ir.Int {
	if b {
		return 1
	}
	return 0
}
