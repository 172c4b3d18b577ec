package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/godror/godror" // Oracle driver

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/model"
)

// Oracle is an Oracle target reached through database/sql and godror.
// Catalog reads cover the connected user's schema.
type Oracle struct {
	db *sql.DB
}

// OpenOracle connects with a godror connect string such as
// "user/password@host:1521/service" and pings the server.
func OpenOracle(ctx context.Context, dsn string) (*Oracle, error) {
	db, err := sql.Open("godror", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle: %w", err)
	}
	// statements run one at a time in phase order
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping oracle: %w", err)
	}
	return &Oracle{db: db}, nil
}

func (o *Oracle) Name() string { return "Oracle" }

func (o *Oracle) Close() { o.db.Close() }

func (o *Oracle) Exec(ctx context.Context, sql string) error {
	_, err := o.db.ExecContext(ctx, sql)
	return err
}

func (o *Oracle) ServerVersion(ctx context.Context) (dialect.Version, error) {
	var v string
	err := o.db.QueryRowContext(ctx,
		`SELECT version FROM product_component_version WHERE product LIKE 'Oracle%' AND ROWNUM = 1`).Scan(&v)
	if err != nil {
		return dialect.Version{}, fmt.Errorf("server version: %w", err)
	}
	return dialect.ParseVersion(v)
}

func (o *Oracle) ReadModel(ctx context.Context) (*model.Database, error) {
	b := newTableBuilder()
	if err := o.readColumns(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if err := o.readComments(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect comments: %w", err)
	}
	if err := o.readPrimaryKeys(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect primary keys: %w", err)
	}
	if err := o.readViews(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}
	return b.finish()
}

func (o *Oracle) readColumns(ctx context.Context, b *tableBuilder) error {
	rows, err := o.db.QueryContext(ctx,
		`SELECT c.table_name, c.column_name, c.data_type,
		        CASE c.data_type WHEN 'NUMBER' THEN NVL(c.data_precision, 0)
		             WHEN 'RAW' THEN c.data_length ELSE c.char_length END,
		        NVL(c.data_scale, 0),
		        CASE WHEN c.nullable = 'N' THEN 1 ELSE 0 END,
		        CASE WHEN c.identity_column = 'YES' THEN 1 ELSE 0 END
		 FROM user_tab_columns c
		 JOIN user_tables t ON t.table_name = c.table_name
		 WHERE NOT EXISTS (SELECT 1 FROM user_mviews m WHERE m.mview_name = c.table_name)
		 ORDER BY c.table_name, c.column_id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			table, name, dataType string
			size, scale           int
			required, identity    int
		)
		if err := rows.Scan(&table, &name, &dataType, &size, &scale, &required, &identity); err != nil {
			return err
		}
		col := &model.Column{Name: name, Required: required == 1, AutoIncrement: identity == 1}
		col.Type, col.NativeType, col.Size, col.Scale = columnType(dataType, size, scale)
		t := b.table(table)
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (o *Oracle) readComments(ctx context.Context, b *tableBuilder) error {
	rows, err := o.db.QueryContext(ctx,
		`SELECT table_name, NVL(comments, ' ') FROM user_tab_comments WHERE table_type = 'TABLE'`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var table, comment string
		if err := rows.Scan(&table, &comment); err != nil {
			rows.Close()
			return err
		}
		if t, ok := b.byName[table]; ok {
			t.Comment = strings.TrimSpace(comment)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = o.db.QueryContext(ctx,
		`SELECT table_name, column_name, comments FROM user_col_comments WHERE comments IS NOT NULL`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table, column, comment string
		if err := rows.Scan(&table, &column, &comment); err != nil {
			return err
		}
		if t, ok := b.byName[table]; ok {
			if c := t.FindColumn(column); c != nil {
				c.Comment = comment
			}
		}
	}
	return rows.Err()
}

// readViews reads plain and materialized views. A materialized view's
// defining query is a LONG and is not read.
func (o *Oracle) readViews(ctx context.Context, b *tableBuilder) error {
	rows, err := o.db.QueryContext(ctx,
		`SELECT v.view_name, NVL(v.text_vc, ' '), 0, NVL(c.comments, ' ')
		 FROM user_views v
		 LEFT JOIN user_tab_comments c ON c.table_name = v.view_name AND c.table_type = 'VIEW'
		 UNION ALL
		 SELECT m.mview_name, ' ', 1, NVL(c.comments, ' ')
		 FROM user_mviews m
		 LEFT JOIN user_mview_comments c ON c.mview_name = m.mview_name
		 ORDER BY 1`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, def, comment string
			materialized       int
		)
		if err := rows.Scan(&name, &def, &materialized, &comment); err != nil {
			return err
		}
		b.db.Views = append(b.db.Views, &model.View{
			Name:         name,
			Definition:   strings.TrimSpace(def),
			Materialized: materialized == 1,
			Comment:      strings.TrimSpace(comment),
		})
	}
	return rows.Err()
}

func (o *Oracle) readPrimaryKeys(ctx context.Context, b *tableBuilder) error {
	rows, err := o.db.QueryContext(ctx,
		`SELECT uc.table_name, uc.constraint_name, ucc.column_name
		 FROM user_constraints uc
		 JOIN user_cons_columns ucc ON ucc.constraint_name = uc.constraint_name
		 WHERE uc.constraint_type = 'P'
		 ORDER BY uc.table_name, ucc.position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var table, constraint, column string
		if err := rows.Scan(&table, &constraint, &column); err != nil {
			return err
		}
		t, ok := b.byName[table]
		if !ok {
			continue
		}
		// system-named keys are left unnamed so they compare equal to models
		// that never named them
		if !strings.HasPrefix(constraint, "SYS_C") {
			t.PrimaryKeyName = constraint
		}
		if c := t.FindColumn(column); c != nil {
			c.PrimaryKey = true
		}
	}
	return rows.Err()
}
