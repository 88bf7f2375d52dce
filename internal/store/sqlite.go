package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vishn-ui/tracker/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if necessary) the SQLite database at cfg.Path and
// applies migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetOrCreateUser(ctx context.Context, email, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("email is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(email, name) VALUES(?,?)
		 ON CONFLICT(email) DO NOTHING`,
		email, nullStr(name),
	)
	if err != nil {
		return User{}, err
	}
	u, ok, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("user %q missing after upsert", email)
	}
	return u, nil
}

func (s *sqliteStore) FindUserByEmail(ctx context.Context, email string) (User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		u    User
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	u.Name = name.String
	return u, true, nil
}

func (s *sqliteStore) GetOrCreateProduct(ctx context.Context, p NewProduct) (Product, error) {
	if strings.TrimSpace(p.URL) == "" {
		return Product{}, errors.New("product url is required")
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products(url, title, image_url, platform, created_at, last_checked, is_active)
		 VALUES(?,?,?,?,?,?,1)
		 ON CONFLICT(url) DO NOTHING`,
		p.URL, p.Title, nullStr(p.ImageURL), nullStr(p.Platform),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Product{}, err
	}
	prod, ok, err := s.FindProductByURL(ctx, p.URL)
	if err != nil {
		return Product{}, err
	}
	if !ok {
		return Product{}, fmt.Errorf("product %q missing after upsert", p.URL)
	}
	return prod, nil
}

func (s *sqliteStore) FindProductByURL(ctx context.Context, url string) (Product, bool, error) {
	var (
		p                  Product
		imageURL, platform sql.NullString
		createdAt          string
		lastChecked        sql.NullString
		active             int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, image_url, platform, created_at, last_checked, is_active
		 FROM products WHERE url = ?`, url,
	).Scan(&p.ID, &p.URL, &p.Title, &imageURL, &platform, &createdAt, &lastChecked, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	p.ImageURL = imageURL.String
	p.Platform = platform.String
	p.CreatedAt = parseTime(createdAt)
	if lastChecked.Valid {
		p.LastChecked = parseTime(lastChecked.String)
	}
	p.Active = active != 0
	return p, true, nil
}

func (s *sqliteStore) TouchProduct(ctx context.Context, productID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET last_checked = ? WHERE id = ?`,
		at.Format(time.RFC3339Nano), productID,
	)
	return err
}

func (s *sqliteStore) GetOrCreateSubscription(ctx context.Context, userID, productID int64, target *float64) (Subscription, error) {
	// The target only applies on first creation; an existing row keeps its
	// original target.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(user_id, product_id, target_price) VALUES(?,?,?)
		 ON CONFLICT(user_id, product_id) DO NOTHING`,
		userID, productID, nullFloat(target),
	)
	if err != nil {
		return Subscription{}, err
	}
	var (
		sub Subscription
		tp  sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, target_price
		 FROM subscriptions WHERE user_id = ? AND product_id = ?`,
		userID, productID,
	).Scan(&sub.ID, &sub.UserID, &sub.ProductID, &tp)
	if err != nil {
		return Subscription{}, err
	}
	if tp.Valid {
		v := tp.Float64
		sub.TargetPrice = &v
	}
	return sub, nil
}

func (s *sqliteStore) FindSubscription(ctx context.Context, email, url string) (Subscription, bool, error) {
	var (
		sub Subscription
		tp  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.user_id, s.product_id, s.target_price
		 FROM subscriptions s
		 JOIN users u ON s.user_id = u.id
		 JOIN products p ON s.product_id = p.id
		 WHERE u.email = ? AND p.url = ?`,
		strings.ToLower(strings.TrimSpace(email)), url,
	).Scan(&sub.ID, &sub.UserID, &sub.ProductID, &tp)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	if tp.Valid {
		v := tp.Float64
		sub.TargetPrice = &v
	}
	return sub, true, nil
}

func (s *sqliteStore) SubscriptionTarget(ctx context.Context, id int64) (*float64, bool, error) {
	var tp sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT target_price FROM subscriptions WHERE id = ?`, id,
	).Scan(&tp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !tp.Valid {
		return nil, true, nil
	}
	v := tp.Float64
	return &v, true, nil
}

func (s *sqliteStore) DeleteSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ActiveSubscriptions(ctx context.Context) ([]ActiveSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.product_id, p.url, s.target_price
		 FROM subscriptions s
		 JOIN products p ON s.product_id = p.id
		 WHERE p.is_active = 1
		 ORDER BY s.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveSubscription
	for rows.Next() {
		var (
			a  ActiveSubscription
			tp sql.NullFloat64
		)
		if err := rows.Scan(&a.SubscriptionID, &a.UserID, &a.ProductID, &a.URL, &tp); err != nil {
			return nil, err
		}
		if tp.Valid {
			v := tp.Float64
			a.TargetPrice = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendPrice(ctx context.Context, productID int64, price float64, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history(product_id, price, ts) VALUES(?,?,?)`,
		productID, price, at.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) PriceHistory(ctx context.Context, productID int64) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price, ts FROM price_history WHERE product_id = ? ORDER BY ts ASC, id ASC`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

func (s *sqliteStore) PriceHistoryByURL(ctx context.Context, url string) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ph.price, ph.ts
		 FROM price_history ph
		 JOIN products p ON ph.product_id = p.id
		 WHERE p.url = ?
		 ORDER BY ph.ts ASC, ph.id ASC`,
		url,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPricePoints(rows)
}

func (s *sqliteStore) TrackedProducts(ctx context.Context, userID int64) ([]TrackedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`WITH latest AS (
		     SELECT product_id, price,
		            ROW_NUMBER() OVER (PARTITION BY product_id ORDER BY ts DESC, id DESC) AS rn
		     FROM price_history
		 )
		 SELECT p.title, p.url, p.image_url, p.platform, s.target_price, l.price, p.last_checked
		 FROM subscriptions s
		 JOIN products p ON s.product_id = p.id
		 LEFT JOIN latest l ON l.product_id = p.id AND l.rn = 1
		 WHERE s.user_id = ?
		 ORDER BY s.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedProduct
	for rows.Next() {
		var (
			t                  TrackedProduct
			imageURL, platform sql.NullString
			target, latest     sql.NullFloat64
			lastChecked        sql.NullString
		)
		if err := rows.Scan(&t.Title, &t.URL, &imageURL, &platform, &target, &latest, &lastChecked); err != nil {
			return nil, err
		}
		t.ImageURL = imageURL.String
		t.Platform = platform.String
		if target.Valid {
			v := target.Float64
			t.TargetPrice = &v
		}
		if latest.Valid {
			v := latest.Float64
			t.LatestPrice = &v
		}
		if lastChecked.Valid {
			t.LastChecked = parseTime(lastChecked.String)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanPricePoints(rows *sql.Rows) ([]PricePoint, error) {
	var out []PricePoint
	for rows.Next() {
		var (
			p  PricePoint
			ts string
		)
		if err := rows.Scan(&p.Price, &ts); err != nil {
			return nil, err
		}
		p.At = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
