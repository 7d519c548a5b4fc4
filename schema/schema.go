// Package schema holds the MySQL DDL for every table, in creation order.
package schema

// Tables returns the CREATE statements in dependency order.
func Tables() []string {
	return []string{
		profileTable,
		interviewTable,
		sessionTable,
		responseTable,
		evaluationTable,
	}
}
