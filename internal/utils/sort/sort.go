package sort

import (
	"errors"
	"fmt"
	"strings"
)

type Type int

const (
	Asc Type = iota
	Desc
)

type Method struct {
	Name string
	Type Type
}

func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}

// Parse reads "column[:asc|:desc],..." as sent in a query string.
func Parse(raw string) ([]Method, error) {
	var methods []Method
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		m := Method{Name: strings.TrimSpace(name)}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			m.Type = Asc
		case "desc":
			m.Type = Desc
		default:
			return nil, fmt.Errorf("unknown sort direction %q", dir)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// GetSort renders an ORDER BY clause restricted to the whitelisted columns.
func GetSort(columns []string, table string, sorts []Method) (string, error) {
	var values []string
	for _, data := range sorts {
		if !Contains(columns, data.Name) {
			return "", errors.New("column not found")
		}
		switch data.Type {
		case Asc:
			values = append(values, fmt.Sprintf("`%s`.`%s` ASC", table, data.Name))
		case Desc:
			values = append(values, fmt.Sprintf("`%s`.`%s` DESC", table, data.Name))
		}
	}
	if len(values) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(values, ", "), nil
}
