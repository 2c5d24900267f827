package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/plan"
)

// Permission is a grant type in a role's permission table.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermCreate Permission = "create"
	PermDelete Permission = "delete"
	PermSubmit Permission = "submit"
	PermCancel Permission = "cancel"
	PermAmend  Permission = "amend"
)

// Permissions lists every grant type in flag order.
var Permissions = []Permission{PermRead, PermWrite, PermCreate, PermDelete, PermSubmit, PermCancel, PermAmend}

// Wildcard grants a permission on every doctype. Wildcard grants are
// implicit and never written as Custom DocPerm records.
const Wildcard = "*"

// PermissionFlags is the set of DocPerm flags one grant implies. Write
// implies read; create implies write and read.
var PermissionFlags = map[Permission][]Permission{
	PermRead:   {PermRead},
	PermWrite:  {PermRead, PermWrite},
	PermCreate: {PermRead, PermWrite, PermCreate},
	PermDelete: {PermDelete},
	PermSubmit: {PermSubmit},
	PermCancel: {PermCancel},
	PermAmend:  {PermAmend},
}

// RoleConfig describes one organizational role.
type RoleConfig struct {
	Name        string
	Description string
	Domain      string
	Grants      map[Permission][]string
	Modules     []string
}

// OrganizationalRoles are the Galaxy Holding roles.
var OrganizationalRoles = []RoleConfig{
	{
		Name:        "Galaxy Director",
		Description: "Executive leadership with unrestricted access",
		Grants: map[Permission][]string{
			PermRead: {Wildcard}, PermWrite: {Wildcard}, PermCreate: {Wildcard},
			PermDelete: {Wildcard}, PermSubmit: {Wildcard}, PermCancel: {Wildcard},
			PermAmend: {Wildcard},
		},
		Modules: []string{"all"},
	},
	{
		Name:        "Galaxy Administrator",
		Description: "Finance and administration",
		Grants: map[Permission][]string{
			PermRead:   {"Account", "Journal Entry", "Payment Entry", "Purchase Invoice", "Sales Invoice", "Budget"},
			PermWrite:  {"Account", "Journal Entry", "Payment Entry", "Purchase Invoice", "Sales Invoice", "Budget"},
			PermCreate: {"Journal Entry", "Payment Entry", "Purchase Invoice", "Sales Invoice"},
			PermSubmit: {"Journal Entry", "Payment Entry", "Purchase Invoice", "Sales Invoice"},
			PermCancel: {"Journal Entry", "Payment Entry"},
		},
		Modules: []string{"Accounts", "Buying", "Selling", "HR"},
	},
	{
		Name:        "Galaxy IT Developer",
		Description: "IT development and project delivery",
		Grants: map[Permission][]string{
			PermRead:   {"Project", "Task", "Timesheet", "Issue"},
			PermWrite:  {"Project", "Task", "Timesheet", "Issue"},
			PermCreate: {"Project", "Task", "Timesheet", "Issue"},
			PermSubmit: {"Timesheet"},
		},
		Modules: []string{"Projects", "Support", "HR"},
	},
	{
		Name:        "Galaxy Operations",
		Description: "Manufacturing and quality operations",
		Grants: map[Permission][]string{
			PermRead:   {"Work Order", "Stock Entry", "Item", "BOM", "Quality Inspection"},
			PermWrite:  {"Work Order", "Stock Entry", "Item", "BOM", "Quality Inspection"},
			PermCreate: {"Work Order", "Stock Entry", "Quality Inspection"},
			PermSubmit: {"Work Order", "Stock Entry", "Quality Inspection"},
		},
		Modules: []string{"Manufacturing", "Stock", "Quality Management"},
	},
	{
		Name:        "Galaxy Legal",
		Description: "Legal and compliance governance",
		Grants: map[Permission][]string{
			PermRead:   {"Customer", "Supplier", "Contract", "Lead", "Opportunity"},
			PermWrite:  {"Customer", "Supplier", "Contract", "Lead", "Opportunity"},
			PermCreate: {"Customer", "Supplier", "Contract", "Lead", "Opportunity"},
		},
		Modules: []string{"CRM", "Buying", "Selling"},
	},
}

// UserAssignment is one user and the roles they hold.
type UserAssignment struct {
	Email string
	Roles []string
}

// UserRoleMatrix assigns Galaxy Holding staff to roles.
var UserRoleMatrix = []UserAssignment{
	{"alvaro.sanbasilio@galaxyholding.com", []string{"Galaxy Director", "System Manager"}},
	{"manuel.martinez@galaxyholding.com", []string{"Galaxy Director", "Galaxy IT Developer"}},
	{"natalia.rodriguez@galaxyholding.com", []string{"Galaxy Administrator", "Accounts Manager"}},
	{"dev1@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"dev2@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"dev3@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"dev4@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"dev5@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"dev6@galaxysoftware.com", []string{"Galaxy IT Developer"}},
	{"francisco.vallejo@galaxybio.com", []string{"Galaxy Operations"}},
	{"ops1@galaxybio.com", []string{"Galaxy Operations"}},
	{"ops2@galaxybio.com", []string{"Galaxy Operations"}},
}

// DocPerm is the aggregated permission of one role on one doctype.
type DocPerm struct {
	Role    string
	DocType string
	Flags   map[Permission]bool
}

// AggregatePermissions folds a role's grants into one DocPerm per
// doctype, in order of first appearance across Permissions. Wildcard
// grants are skipped.
func AggregatePermissions(role RoleConfig) []DocPerm {
	var order []string
	byDocType := make(map[string]*DocPerm)

	for _, perm := range Permissions {
		for _, doctype := range role.Grants[perm] {
			if doctype == Wildcard {
				continue
			}
			dp, ok := byDocType[doctype]
			if !ok {
				dp = &DocPerm{Role: role.Name, DocType: doctype, Flags: make(map[Permission]bool)}
				byDocType[doctype] = dp
				order = append(order, doctype)
			}
			for _, implied := range PermissionFlags[perm] {
				dp.Flags[implied] = true
			}
		}
	}

	out := make([]DocPerm, 0, len(order))
	for _, doctype := range order {
		out = append(out, *byDocType[doctype])
	}
	return out
}

// Spec returns the Custom DocPerm record at permlevel 0 with every flag
// set explicitly.
func (dp DocPerm) Spec() ir.RecordSpec {
	desired := ir.NewFields(
		ir.F("parenttype", ir.Str("DocType")),
		ir.F("parentfield", ir.Str("permissions")),
	)
	for _, perm := range Permissions {
		desired[string(perm)] = flag(dp.Flags[perm])
	}
	return ir.RecordSpec{
		Kind: "Custom DocPerm",
		Lookup: ir.NewFields(
			ir.F("parent", ir.Str(dp.DocType)),
			ir.F("role", ir.Str(dp.Role)),
			ir.F("permlevel", ir.Int(0)),
		),
		Desired: desired,
	}
}

// RolesOptions configures the roles plan.
type RolesOptions struct {
	// Roles and Users override the default datasets when non-nil.
	Roles []RoleConfig
	Users []UserAssignment
}

// Roles builds the roles plan: roles, their aggregated permissions, and
// users with their role lists. A user's role list is replaced on every
// run, so roles removed from the matrix are revoked.
func Roles(opts RolesOptions) *plan.Plan {
	roles := opts.Roles
	if roles == nil {
		roles = OrganizationalRoles
	}
	users := opts.Users
	if users == nil {
		users = UserRoleMatrix
	}

	var roleSpecs, permSpecs, userSpecs []ir.RecordSpec
	for _, role := range roles {
		roleSpecs = append(roleSpecs, roleSpec(role))
		for _, dp := range AggregatePermissions(role) {
			permSpecs = append(permSpecs, dp.Spec())
		}
	}
	for _, u := range users {
		userSpecs = append(userSpecs, userSpec(u))
	}

	return &plan.Plan{
		Name:        "roles",
		Description: "Galaxy Holding roles, permissions and users",
		Batches: []plan.Batch{
			{Name: "roles", Records: roleSpecs},
			{Name: "permissions", Records: permSpecs},
			{Name: "users", Records: userSpecs},
		},
	}
}

func roleSpec(role RoleConfig) ir.RecordSpec {
	spec := ir.RecordSpec{
		Kind:   "Role",
		Lookup: ir.NewFields(ir.F("role_name", ir.Str(role.Name))),
		Desired: ir.NewFields(
			ir.F("desk_access", ir.Int(1)),
			ir.F("is_custom", ir.Int(1)),
			ir.F("description", ir.Str(role.Description)),
		),
	}
	if role.Domain != "" {
		spec.CreateOnly = ir.NewFields(ir.F("restrict_to_domain", ir.Str(role.Domain)))
	}
	return spec
}

func userSpec(u UserAssignment) ir.RecordSpec {
	return ir.RecordSpec{
		Kind:    "User",
		Lookup:  ir.NewFields(ir.F("email", ir.Str(u.Email))),
		Desired: ir.NewFields(ir.F("roles", ir.Strs(u.Roles...))),
		CreateOnly: ir.NewFields(
			ir.F("first_name", ir.Str(FirstName(u.Email))),
			ir.F("enabled", ir.Int(1)),
			ir.F("user_type", ir.Str("System User")),
			ir.F("send_welcome_email", ir.Int(0)),
		),
	}
}

// FirstName derives a display name from an email's local part:
// "alvaro.sanbasilio@x" becomes "Alvaro Sanbasilio".
func FirstName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return cases.Title(language.Und).String(strings.ReplaceAll(local, ".", " "))
}
