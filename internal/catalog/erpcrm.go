package catalog

import (
	"encoding/json"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/plan"
)

// Verifactu webhook settings.
const (
	VerifactuWebhook     = "Verifactu Sandbox"
	VerifactuURL         = "https://api.verifactu.sandbox/v1/invoices"
	VerifactuPlaceholder = "REPLACE_ME"
)

// VerifactuPayloadTemplate is the Jinja body the ERP renders for each
// submitted Sales Invoice. It is stored verbatim.
const VerifactuPayloadTemplate = `{
  "invoice_number": "{{ doc.name }}",
  "customer": "{{ doc.customer_name }}",
  "total": "{{ doc.rounded_total or doc.grand_total }}",
  "issue_date": "{{ doc.posting_date }}",
  "tax_id": "{{ doc.tax_id or '' }}",
  "items": [
    {% for item in doc.items %}
    {
      "code": "{{ item.item_code }}",
      "description": "{{ item.description }}",
      "amount": "{{ item.base_net_amount }}",
      "quantity": "{{ item.qty }}"
    }{% if not loop.last %},{% endif %}
    {% endfor %}
  ]
}`

// ERPCRMOptions configures the operational data plan.
type ERPCRMOptions struct {
	// VerifactuAPIKey enables the webhook. Empty leaves it disabled with a
	// placeholder key.
	VerifactuAPIKey string
}

// ERPCRM builds the operational data plan: customers with contacts,
// suppliers, items, projects, the CRM pipeline, the default BOM and the
// Verifactu webhook.
func ERPCRM(opts ERPCRMOptions) *plan.Plan {
	return &plan.Plan{
		Name:        "erp-crm",
		Description: "Galaxy Holding ERP and CRM data",
		Batches: []plan.Batch{
			{Name: "customers", Records: customers()},
			{Name: "suppliers", Records: suppliers()},
			{Name: "items", Records: items()},
			{Name: "projects", Records: projects()},
			{Name: "crm", Records: crmPipeline()},
			{Name: "manufacturing", Records: manufacturing()},
			{Name: "integrations", Records: []ir.RecordSpec{verifactuWebhook(opts.VerifactuAPIKey)}},
		},
	}
}

type contact struct {
	first, last, email, phone string
}

func customers() []ir.RecordSpec {
	data := []struct {
		name, group, territory string
		primary                contact
	}{
		{"BioPharma Iberia", "Commercial", "Spain",
			contact{"Laura", "Gomez", "laura.gomez@biopharmaiberia.com", "+34 600 111 222"}},
		{"Asterion Renewable", "Commercial", "Portugal",
			contact{"Miguel", "Ferreira", "miguel.ferreira@asterionrenew.com", "+351 910 222 333"}},
	}

	var specs []ir.RecordSpec
	for _, c := range data {
		specs = append(specs,
			ir.RecordSpec{
				Kind:   "Customer",
				Lookup: ir.NewFields(ir.F("customer_name", ir.Str(c.name))),
				Desired: ir.NewFields(
					ir.F("customer_group", ir.Str(c.group)),
					ir.F("territory", ir.Str(c.territory)),
					ir.F("customer_type", ir.Str("Company")),
				),
			},
			ir.RecordSpec{
				Kind:   "Contact",
				Lookup: ir.NewFields(ir.F("email_id", ir.Str(c.primary.email))),
				Desired: ir.NewFields(
					ir.F("first_name", ir.Str(c.primary.first)),
					ir.F("last_name", ir.Str(c.primary.last)),
					ir.F("phone", ir.Str(c.primary.phone)),
					ir.F("links", ir.List{ir.NewFields(
						ir.F("link_doctype", ir.Str("Customer")),
						ir.F("link_name", ir.Str(c.name)),
					)}),
				),
			},
		)
	}
	return specs
}

func suppliers() []ir.RecordSpec {
	data := []struct{ name, group, country string }{
		{"Sygma Raw Materials", "Local", "Spain"},
		{"Helios Packaging", "International", "Germany"},
	}

	var specs []ir.RecordSpec
	for _, s := range data {
		specs = append(specs, ir.RecordSpec{
			Kind:   "Supplier",
			Lookup: ir.NewFields(ir.F("supplier_name", ir.Str(s.name))),
			Desired: ir.NewFields(
				ir.F("supplier_group", ir.Str(s.group)),
				ir.F("supplier_type", ir.Str("Company")),
				ir.F("country", ir.Str(s.country)),
			),
		})
	}
	return specs
}

func items() []ir.RecordSpec {
	data := []struct {
		code, name, description, group, uom, company string
		stock                                        bool
	}{
		{"BIO-INS-001", "Bio Insulin Lot", "Pharmaceutical-grade insulin batch", "Products", "Nos", "Galaxy Bio", true},
		{"SOFT-DEV-001", "Custom Software Sprint", "Four-week agile delivery sprint", "Services", "Hour", "Galaxy Software", false},
	}

	var specs []ir.RecordSpec
	for _, it := range data {
		specs = append(specs, ir.RecordSpec{
			Kind:   "Item",
			Lookup: ir.NewFields(ir.F("item_code", ir.Str(it.code))),
			Desired: ir.NewFields(
				ir.F("item_name", ir.Str(it.name)),
				ir.F("description", ir.Str(it.description)),
				ir.F("item_group", ir.Str(it.group)),
				ir.F("stock_uom", ir.Str(it.uom)),
				ir.F("is_stock_item", flag(it.stock)),
				ir.F("company", ir.Str(it.company)),
			),
		})
	}
	return specs
}

type task struct{ subject, start, end string }

func projects() []ir.RecordSpec {
	data := []struct {
		name, company, start, end string
		tasks                     []task
	}{
		{"Galaxy Bio GMP Upgrade", "Galaxy Bio", "2024-01-01", "2024-12-31", []task{
			{"Facility Assessment", "2024-01-05", "2024-02-15"},
			{"Validation Protocols", "2024-02-16", "2024-05-30"},
		}},
		{"Galaxy Software ERP Rollout", "Galaxy Software", "2024-03-01", "2024-09-30", []task{
			{"Requirement Workshops", "2024-03-05", "2024-04-15"},
			{"MVP Delivery", "2024-04-16", "2024-07-31"},
		}},
	}

	var specs []ir.RecordSpec
	for _, p := range data {
		tasks := make(ir.List, 0, len(p.tasks))
		for _, t := range p.tasks {
			tasks = append(tasks, ir.NewFields(
				ir.F("subject", ir.Str(t.subject)),
				ir.F("start_date", ir.Str(t.start)),
				ir.F("end_date", ir.Str(t.end)),
			))
		}
		specs = append(specs, ir.RecordSpec{
			Kind:   "Project",
			Lookup: ir.NewFields(ir.F("project_name", ir.Str(p.name))),
			Desired: ir.NewFields(
				ir.F("company", ir.Str(p.company)),
				ir.F("is_active", ir.Int(1)),
				ir.F("expected_start_date", ir.Str(p.start)),
				ir.F("expected_end_date", ir.Str(p.end)),
				ir.F("tasks", tasks),
			),
		})
	}
	return specs
}

type lineItem struct {
	code      string
	qty, rate int64
}

func (li lineItem) fields() ir.Fields {
	return ir.NewFields(
		ir.F("item_code", ir.Str(li.code)),
		ir.F("qty", ir.Int(li.qty)),
		ir.F("rate", ir.Int(li.rate)),
	)
}

func crmPipeline() []ir.RecordSpec {
	leads := []struct{ name, owner, status, email, phone, source string }{
		{"Solaria Health", "natalia.rodriguez@galaxyholding.com", "Interested", "contact@solariahealth.eu", "+34 655 444 555", "Website"},
		{"Andes Pharma", "manuel.martinez@galaxyholding.com", "Open", "info@andespharma.co", "+57 310 789 0000", "Referral"},
	}
	opportunities := []struct {
		name, company, lead, closing string
		items                        []lineItem
	}{
		{"Solaria MES Deployment", "Galaxy Software", "Solaria Health", "2024-06-30",
			[]lineItem{{"SOFT-DEV-001", 1, 65000}}},
		{"Andes Pharma Manufacturing", "Galaxy Bio", "Andes Pharma", "2024-08-15",
			[]lineItem{{"BIO-INS-001", 5, 18000}}},
	}

	var specs []ir.RecordSpec
	for _, l := range leads {
		specs = append(specs, ir.RecordSpec{
			Kind:   "Lead",
			Lookup: ir.NewFields(ir.F("company_name", ir.Str(l.name))),
			Desired: ir.NewFields(
				ir.F("lead_name", ir.Str(l.name)),
				ir.F("lead_owner", ir.Str(l.owner)),
				ir.F("status", ir.Str(l.status)),
				ir.F("email_id", ir.Str(l.email)),
				ir.F("phone", ir.Str(l.phone)),
				ir.F("source", ir.Str(l.source)),
				ir.F("company", ir.Str(HoldingCompany)),
			),
		})
	}
	for _, o := range opportunities {
		lines := make(ir.List, 0, len(o.items))
		for _, li := range o.items {
			lines = append(lines, li.fields())
		}
		specs = append(specs, ir.RecordSpec{
			Kind:   "Opportunity",
			Lookup: ir.NewFields(ir.F("opportunity_name", ir.Str(o.name))),
			Desired: ir.NewFields(
				ir.F("party_type", ir.Str("Customer")),
				ir.F("company", ir.Str(o.company)),
				ir.F("with_items", ir.Int(1)),
				ir.F("opportunity_from", ir.Str("Lead")),
				ir.F("lead", ir.Str(o.lead)),
				ir.F("expected_closing", ir.Str(o.closing)),
				ir.F("items", lines),
			),
		})
	}
	return specs
}

// manufacturing returns the default BOM. It is created once and left
// alone afterwards so engineers can edit it.
func manufacturing() []ir.RecordSpec {
	return []ir.RecordSpec{{
		Kind:   "BOM",
		Lookup: ir.NewFields(ir.F("item", ir.Str("BIO-INS-001"))),
		CreateOnly: ir.NewFields(
			ir.F("company", ir.Str("Galaxy Bio")),
			ir.F("quantity", ir.Int(1)),
			ir.F("is_active", ir.Int(1)),
			ir.F("is_default", ir.Int(1)),
			ir.F("items", ir.List{lineItem{"BIO-INS-001", 1, 0}.fields()}),
		),
	}}
}

type header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// VerifactuHeaders returns the webhook's JSON header list.
func VerifactuHeaders(apiKey string) string {
	if apiKey == "" {
		apiKey = VerifactuPlaceholder
	}
	data, err := json.Marshal([]header{
		{Key: "Content-Type", Value: "application/json"},
		{Key: "X-API-KEY", Value: apiKey},
	})
	if err != nil {
		// Marshalling two string pairs cannot fail.
		panic(err)
	}
	return string(data)
}

func verifactuWebhook(apiKey string) ir.RecordSpec {
	return ir.RecordSpec{
		Kind:   "Webhook",
		Lookup: ir.NewFields(ir.F("webhook_name", ir.Str(VerifactuWebhook))),
		Desired: ir.NewFields(
			ir.F("webhook_docevent", ir.Str("on_submit")),
			ir.F("webhook_doctype", ir.Str("Sales Invoice")),
			ir.F("request_method", ir.Str("POST")),
			ir.F("request_url", ir.Str(VerifactuURL)),
			ir.F("headers", ir.Str(VerifactuHeaders(apiKey))),
			ir.F("data", ir.Str(VerifactuPayloadTemplate)),
			ir.F("enabled", flag(apiKey != "")),
		),
	}
}
