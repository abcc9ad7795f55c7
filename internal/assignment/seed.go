package assignment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults returns the built-in practice set for the employees and
// products sandbox tables.
func Defaults() []Assignment {
	return []Assignment{
		{
			Title:           "Find All Employees",
			Description:     "Practice basic SELECT queries on the employees table",
			Difficulty:      Easy,
			Question:        "Write a SQL query to fetch all employees who work in the Engineering department.",
			TableName:       "employees",
			ExpectedColumns: []string{"id", "name", "department", "salary", "hire_date"},
		},
		{
			Title:           "High Earners",
			Description:     "Filter employees based on salary conditions",
			Difficulty:      Easy,
			Question:        "Write a SQL query to find all employees with a salary greater than 75000. Show their name and salary only.",
			TableName:       "employees",
			ExpectedColumns: []string{"name", "salary"},
		},
		{
			Title:           "Department Salary Average",
			Description:     "Use aggregate functions to analyze salary data",
			Difficulty:      Medium,
			Question:        "Write a SQL query to find the average salary for each department. Order the results by average salary in descending order.",
			TableName:       "employees",
			ExpectedColumns: []string{"department", "avg"},
		},
		{
			Title:           "Expensive Products",
			Description:     "Filter products by price range",
			Difficulty:      Easy,
			Question:        "Write a SQL query to find all products with a price greater than 100. Show the product name, category, and price.",
			TableName:       "products",
			ExpectedColumns: []string{"name", "category", "price"},
		},
		{
			Title:           "Low Stock Alert",
			Description:     "Find products that need restocking",
			Difficulty:      Medium,
			Question:        "Write a SQL query to find all products where stock is less than 50, ordered by stock quantity from lowest to highest.",
			TableName:       "products",
			ExpectedColumns: []string{"name", "stock"},
		},
	}
}

// seedFile is the YAML layout accepted by LoadFile.
type seedFile struct {
	Assignments []Assignment `yaml:"assignments"`
}

// LoadFile reads assignments from a YAML file with a top-level
// "assignments" list and validates each entry.
func LoadFile(path string) ([]Assignment, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(f.Assignments) == 0 {
		return nil, fmt.Errorf("seed file %s: no assignments", path)
	}
	for _, a := range f.Assignments {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("seed file %s: %w", path, err)
		}
	}
	return f.Assignments, nil
}
