package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txKey struct{}

// NewGormStore builds a Store over a gorm connection to Postgres or
// SQLite. On Postgres every transaction waits at most lockTimeout on a
// row lock.
func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *Store {
	conn := gormConn{db: db}
	return &Store{
		Tx:           &gormTransactor{db: db, lockTimeout: lockTimeout},
		Tiers:        &tierRepository{conn},
		Holds:        &holdRepository{conn},
		Tables:       &tableRepository{conn},
		Reservations: &reservationRepository{conn},
		Payments:     &paymentRepository{conn},
		Tickets:      &ticketRepository{conn},
		Rewards:      &rewardRepository{conn},
	}
}

type gormConn struct {
	db *gorm.DB
}

// get returns the transaction bound to ctx, or the pool.
func (c gormConn) get(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return c.db.WithContext(ctx)
}

func (c gormConn) locked(ctx context.Context) *gorm.DB {
	return c.get(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

type gormTransactor struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return translate(err)
}

// translate maps driver errors onto the package sentinels and passes
// anything else through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicate) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteBusy, sqliteLocked, sqliteBusySnapshot:
			return fmt.Errorf("%w: %s", ErrConflict, err)
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return fmt.Errorf("%w: %s", ErrDuplicate, err)
		}
	}
	return err
}

// SQLite result codes, see https://www.sqlite.org/rescode.html
const (
	sqliteBusy                 = 5
	sqliteLocked               = 6
	sqliteBusySnapshot         = 517
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// updateVersioned writes every column of model if its stored version
// still equals *version, then bumps *version.
func updateVersioned(db *gorm.DB, model any, version *int) error {
	current := *version
	*version = current + 1
	res := db.Model(model).Where("version = ?", current).Select("*").Omit("created_at").Updates(model)
	if res.Error != nil {
		*version = current
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		*version = current
		return ErrConflict
	}
	return nil
}
