// Package catalog holds the Galaxy Holding seed datasets as plans.
//
// Each builder returns a *plan.Plan whose batches mirror one provisioning
// area: the company structure, roles with their permissions and users,
// and the operational ERP and CRM records. Builders are pure: the same
// options always produce the same plan.
package catalog
