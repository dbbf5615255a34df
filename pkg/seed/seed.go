// Package seed loads a starting directory of employees, clients and
// branches from YAML.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"gopkg.in/yaml.v3"
)

// File is the YAML document layout
type File struct {
	Employees []Employee `yaml:"employees"`
	Clients   []Client   `yaml:"clients"`
}

type Employee struct {
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active"`
}

type Client struct {
	Name     string   `yaml:"name"`
	Branches []Branch `yaml:"branches"`
}

type Branch struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Directory is the subset of the directory store seeding writes to
type Directory interface {
	ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error)
	CreateEmployee(ctx context.Context, e *models.Employee) error
	ListClients(ctx context.Context) ([]models.Client, error)
	CreateClient(ctx context.Context, c *models.Client) error
	CreateBranch(ctx context.Context, b *models.Branch) error
}

// Summary counts the records Apply created
type Summary struct {
	Employees int
	Clients   int
	Branches  int
}

// Parse decodes and validates a seed document
func Parse(data []byte) (File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return File{}, fmt.Errorf("seed: document is empty")
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	for i, e := range f.Employees {
		if strings.TrimSpace(e.Name) == "" {
			return File{}, fmt.Errorf("seed: employee %d has no name", i+1)
		}
	}
	for i, c := range f.Clients {
		if strings.TrimSpace(c.Name) == "" {
			return File{}, fmt.Errorf("seed: client %d has no name", i+1)
		}
		for j, b := range c.Branches {
			if strings.TrimSpace(b.Name) == "" {
				return File{}, fmt.Errorf("seed: client %q branch %d has no name", c.Name, j+1)
			}
		}
	}
	return f, nil
}

// LoadFile reads and parses the seed document at path
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(data)
}

// Apply creates every employee, client and branch in f that dir does not
// already have. Records are matched by name, so applying twice is a no-op.
func Apply(ctx context.Context, dir Directory, f File) (Summary, error) {
	var sum Summary

	emps, err := dir.ListEmployees(ctx, false)
	if err != nil {
		return sum, err
	}
	haveEmp := make(map[string]bool, len(emps))
	for _, e := range emps {
		haveEmp[e.Name] = true
	}
	for _, e := range f.Employees {
		name := strings.TrimSpace(e.Name)
		if haveEmp[name] {
			continue
		}
		emp := &models.Employee{Name: name, Active: e.Active == nil || *e.Active}
		if err := dir.CreateEmployee(ctx, emp); err != nil {
			return sum, fmt.Errorf("seed: employee %q: %w", name, err)
		}
		haveEmp[name] = true
		sum.Employees++
	}

	clients, err := dir.ListClients(ctx)
	if err != nil {
		return sum, err
	}
	byName := make(map[string]*models.Client, len(clients))
	for i := range clients {
		byName[clients[i].Name] = &clients[i]
	}
	for _, c := range f.Clients {
		name := strings.TrimSpace(c.Name)
		client, ok := byName[name]
		if !ok {
			client = &models.Client{Name: name}
			if err := dir.CreateClient(ctx, client); err != nil {
				return sum, fmt.Errorf("seed: client %q: %w", name, err)
			}
			byName[name] = client
			sum.Clients++
		}

		haveBranch := make(map[string]bool, len(client.Branches))
		for _, b := range client.Branches {
			haveBranch[b.Name] = true
		}
		for _, b := range c.Branches {
			bname := strings.TrimSpace(b.Name)
			if haveBranch[bname] {
				continue
			}
			branch := &models.Branch{ClientID: client.ID, Name: bname, Address: strings.TrimSpace(b.Address)}
			if err := dir.CreateBranch(ctx, branch); err != nil {
				return sum, fmt.Errorf("seed: branch %q of %q: %w", bname, name, err)
			}
			client.Branches = append(client.Branches, *branch)
			haveBranch[bname] = true
			sum.Branches++
		}
	}
	return sum, nil
}
