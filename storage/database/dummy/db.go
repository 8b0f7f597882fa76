package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
)

type (
	// DB is an in-memory database. Its transactions snapshot every table and restore them on error.
	DB struct {
		txMu sync.Mutex // serializes transactions
		mu   sync.RWMutex
		t    *tables
	}

	enrollmentKey struct {
		personID   string
		schoolYear int
	}

	parentChildKey struct {
		parentID string
		childID  string
	}

	tables struct {
		schoolYears map[int]member.SchoolYear
		roles       map[string]member.Role
		branches    map[int]member.Branch
		sections    map[int]member.Section
		persons     map[string]member.Person
		personRoles map[string]map[string]time.Time // {personID: {role: assignedOn}}
		enrollments map[enrollmentKey]member.Enrollment
		parentChild map[parentChildKey]member.ParentChild
		accounts    map[string]account.Account
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{t: newTables()}
}

func newTables() *tables {
	return &tables{
		schoolYears: make(map[int]member.SchoolYear),
		roles:       make(map[string]member.Role),
		branches:    make(map[int]member.Branch),
		sections:    make(map[int]member.Section),
		persons:     make(map[string]member.Person),
		personRoles: make(map[string]map[string]time.Time),
		enrollments: make(map[enrollmentKey]member.Enrollment),
		parentChild: make(map[parentChildKey]member.ParentChild),
		accounts:    make(map[string]account.Account),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.schoolYears {
		c.schoolYears[k] = v
	}
	for k, v := range t.roles {
		c.roles[k] = v
	}
	for k, v := range t.branches {
		c.branches[k] = v
	}
	for k, v := range t.sections {
		c.sections[k] = v
	}
	for k, v := range t.persons {
		c.persons[k] = v
	}
	for k, v := range t.personRoles {
		roles := make(map[string]time.Time, len(v))
		for r, d := range v {
			roles[r] = d
		}
		c.personRoles[k] = roles
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.parentChild {
		c.parentChild[k] = v
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	return c
}

// InTx runs fn and restores the tables as they were before it when fn fails.
// Repositories ignore the executor fn receives.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}
