package models

// DepartmentRecord is one subject code known to the registrar for a term.
type DepartmentRecord struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// TermRecord is one term the registrar offers for searching.
type TermRecord struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
