package models

// ProjectSummary describes one project partition of the store.
type ProjectSummary struct {
	Project string `json:"project"`
	Issues  int    `json:"issues"`
	Open    int    `json:"open"`
}
