package models

import (
	"database/sql"
	"strings"
	"time"
)

// AccountType is the type of the installed GitHub account.
type AccountType string

const (
	// AccountTypeOrganization is a GitHub organization account.
	AccountTypeOrganization AccountType = "organization"

	// AccountTypeUser is a personal GitHub account.
	AccountTypeUser AccountType = "user"
)

// ParseAccountType normalizes a GitHub account type string.
func ParseAccountType(s string) AccountType {
	if strings.EqualFold(s, "user") {
		return AccountTypeUser
	}
	return AccountTypeOrganization
}

// Organization represents one installed GitHub account, organization or
// personal.
type Organization struct {
	ID              int64          `db:"id"`
	Slug            string         `db:"slug"`
	AccountType     AccountType    `db:"account_type"`
	GithubAccountID sql.NullInt64  `db:"github_account_id"`
	IsActive        bool           `db:"is_active"`
	CLAText         string         `db:"cla_text"`
	CLATextSHA256   sql.NullString `db:"cla_text_sha256"`
	InstallationID  sql.NullInt64  `db:"installation_id"`
	AdminGithubID   sql.NullInt64  `db:"admin_github_id"`
	AdminLogin      sql.NullString `db:"admin_github_login"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// HasCLA reports whether the organization has a published CLA.
// The sha column is NULL exactly when the text is empty.
func (o Organization) HasCLA() bool {
	return o.CLATextSHA256.Valid && strings.TrimSpace(o.CLAText) != ""
}

// IsPersonal reports whether the installation is on a personal account.
func (o Organization) IsPersonal() bool {
	return o.AccountType == AccountTypeUser
}
