package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository хранит журнал продаж в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !retryable(err) || i == len(delays) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return err
}

// retryable сообщает, стоит ли повторить запрос: конфликт сериализации,
// взаимоблокировка или обрыв соединения.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// AddSale записывает закрытую продажу. Повторная запись того же заказа игнорируется.
func (r *PostgresRepository) AddSale(ctx context.Context, sale model.Sale) error {
	items := sale.Items
	if items == nil {
		items = []model.CartLine{}
	}
	methods := sale.PaymentMethods
	if methods == nil {
		methods = map[string]float64{}
	}

	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sales (order_id, order_number, sold_at, cashier_name, customer, items,
			                    total_amount, paid_amount, exchange_rate, payment_methods)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (order_id) DO NOTHING`,
			sale.OrderID, sale.OrderNumber, sale.Date, sale.CashierName, sale.Customer, items,
			sale.TotalAmount, sale.PaidAmount, sale.ExchangeRate, methods,
		)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		return nil
	})
}

// ListSales возвращает продажи за дни с from по to включительно, новые первыми.
func (r *PostgresRepository) ListSales(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	start, end := DayBounds(from, to)

	var (
		startArg *time.Time
		endArg   *time.Time
	)
	if !start.IsZero() {
		startArg = &start
	}
	if !end.IsZero() {
		endArg = &end
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_id, order_number, sold_at, cashier_name, customer, items,
		        total_amount, paid_amount, exchange_rate, payment_methods
		 FROM sales
		 WHERE ($1::timestamptz IS NULL OR sold_at >= $1)
		   AND ($2::timestamptz IS NULL OR sold_at < $2)
		 ORDER BY sold_at DESC, order_id DESC`,
		startArg, endArg,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		var s model.Sale
		if err := rows.Scan(
			&s.OrderID, &s.OrderNumber, &s.Date, &s.CashierName, &s.Customer, &s.Items,
			&s.TotalAmount, &s.PaidAmount, &s.ExchangeRate, &s.PaymentMethods,
		); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}
