package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
)

type (
	// DB is an in-memory database for tests and local runs.
	DB struct {
		mutex sync.RWMutex // guards the tables
		txMu  sync.Mutex   // serializes transactions
		pk    int64
		tables
	}

	tables struct {
		programs           map[uuid.UUID]catalog.Program
		accounts           map[int64]account.Account
		registrations      map[int64]enrollment.CourseRegistration
		programEnrollments map[int64]enrollment.ProgramEnrollment
		courseEnrollments  map[int64]enrollment.ProgramCourseEnrollment
	}
)

var _ core.TxRunner = (*DB)(nil)

func Open() *DB {
	return &DB{
		tables: tables{
			programs:           make(map[uuid.UUID]catalog.Program),
			accounts:           make(map[int64]account.Account),
			registrations:      make(map[int64]enrollment.CourseRegistration),
			programEnrollments: make(map[int64]enrollment.ProgramEnrollment),
			courseEnrollments:  make(map[int64]enrollment.ProgramCourseEnrollment),
		},
	}
}

// RunInTx runs transactions one at a time and restores the tables if fn fails or panics.
// Repositories ignore the executor handed to fn.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(snap)
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		db.restore(snap)
	}
	return err
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int64 {
	db.pk++
	return db.pk
}

func (db *DB) snapshot() tables {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	snap := tables{
		programs:           make(map[uuid.UUID]catalog.Program, len(db.programs)),
		accounts:           make(map[int64]account.Account, len(db.accounts)),
		registrations:      make(map[int64]enrollment.CourseRegistration, len(db.registrations)),
		programEnrollments: make(map[int64]enrollment.ProgramEnrollment, len(db.programEnrollments)),
		courseEnrollments:  make(map[int64]enrollment.ProgramCourseEnrollment, len(db.courseEnrollments)),
	}
	for k, v := range db.programs {
		snap.programs[k] = v
	}
	for k, v := range db.accounts {
		snap.accounts[k] = v
	}
	for k, v := range db.registrations {
		snap.registrations[k] = v
	}
	for k, v := range db.programEnrollments {
		snap.programEnrollments[k] = v
	}
	for k, v := range db.courseEnrollments {
		snap.courseEnrollments[k] = v
	}
	return snap
}

func (db *DB) restore(snap tables) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = snap
}

// paginate selects the page of ids (ascending) described by q.
func paginate(ids []int64, q core.PageQuery) ([]int64, bool) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if q.Cursor == nil {
		if len(ids) > q.Limit {
			return ids[:q.Limit], true
		}
		return ids, false
	}

	if q.Cursor.Reverse {
		end := sort.Search(len(ids), func(i int) bool { return ids[i] >= q.Cursor.Position })
		if end > q.Limit {
			return ids[end-q.Limit : end], true
		}
		return ids[:end], false
	}

	start := sort.Search(len(ids), func(i int) bool { return ids[i] > q.Cursor.Position })
	rest := ids[start:]
	if len(rest) > q.Limit {
		return rest[:q.Limit], true
	}
	return rest, false
}
