/*
template.go - Canonical import template

Static guidance data for users building an import file. Not validation logic:
the parser accepts any header that normalizes to these names.
*/
package importer

// TemplateHeader is the canonical header line for import files.
const TemplateHeader = "employeeEmail,licenseName,assignedDate,expirationDate,status,notes,assignedBy"

// Template returns the canonical header plus illustrative example rows.
func Template() string {
	return TemplateHeader + "\n" +
		"jane.doe@example.com,Acme Design Suite,2025-01-15,2026-01-15,active,annual seat,it-admin\n" +
		"sam.lee@example.com,Acme Design Suite,2025-02-01,,active,,\n" +
		"former.employee@example.com,Vector CAD Pro,2024-06-01,2024-12-31,expired,contract ended,it-admin\n"
}
