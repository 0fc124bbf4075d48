// Package dummydb is the in-memory storage engine used by tests and the "memory" database engine.
package dummydb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
	"github.com/ElabeidiTech/LearnHub-sub000/core/quiz"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

type (
	enrollmentKey struct{ studentID, courseID string }
	answerKey     struct{ attemptID, questionID string }

	tables struct {
		users         map[string]user.User
		verifications map[string]user.VerificationRecord
		courses       map[string]course.Course
		enrollments   map[enrollmentKey]course.Enrollment
		materials     map[string]course.Material
		assignments   map[string]assignment.Assignment
		submissions   map[string]assignment.Submission
		quizzes       map[string]quiz.Quiz
		questions     map[string]quiz.Question
		attempts      map[string]quiz.Attempt
		answers       map[answerKey]quiz.Answer
	}

	DB struct {
		sync.RWMutex
		tables

		txMu sync.Mutex
	}
)

func newTables() tables {
	return tables{
		users:         make(map[string]user.User),
		verifications: make(map[string]user.VerificationRecord),
		courses:       make(map[string]course.Course),
		enrollments:   make(map[enrollmentKey]course.Enrollment),
		materials:     make(map[string]course.Material),
		assignments:   make(map[string]assignment.Assignment),
		submissions:   make(map[string]assignment.Submission),
		quizzes:       make(map[string]quiz.Quiz),
		questions:     make(map[string]quiz.Question),
		attempts:      make(map[string]quiz.Attempt),
		answers:       make(map[answerKey]quiz.Answer),
	}
}

func Open() (*DB, error) {
	return &DB{tables: newTables()}, nil
}

// Reset drops every row.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.tables = newTables()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (t tables) clone() tables {
	return tables{
		users:         copyMap(t.users),
		verifications: copyMap(t.verifications),
		courses:       copyMap(t.courses),
		enrollments:   copyMap(t.enrollments),
		materials:     copyMap(t.materials),
		assignments:   copyMap(t.assignments),
		submissions:   copyMap(t.submissions),
		quizzes:       copyMap(t.quizzes),
		questions:     copyMap(t.questions),
		attempts:      copyMap(t.attempts),
		answers:       copyMap(t.answers),
	}
}

func newID() string { return uuid.New().String() }

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

// WithinTx serializes transactions and restores a snapshot of every table when fn fails.
func (t *transactor) WithinTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.RLock()
	snapshot := t.db.tables.clone()
	t.db.RUnlock()

	if err := fn(nil); err != nil {
		t.db.Lock()
		t.db.tables = snapshot
		t.db.Unlock()
		return err
	}
	return nil
}
