package core

import (
	"context"
	"testing"

	"github.com/vkoudela/koldy/internal/dialects"
)

func BenchmarkQueryBuilder_ToSQL(b *testing.B) {
	qb := NewQueryBuilder(nil).
		From("users", "u", "id", "name", "email").
		LeftJoin("posts", "p", "p.user_id = u.id").
		Field("COUNT(p.id)", "posts").
		Where("u.status", "active").
		WhereIn("u.role", "admin", "editor", "author").
		WhereGroup(func(w *Where) {
			w.WhereLike("u.name", "A%").OrWhereNull("u.deleted_at")
		}).
		GroupBy("id").
		OrderBy("posts", "DESC").
		Limit(0, 25)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := qb.ToSQL(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	sql := "SELECT * FROM users WHERE (status = :status) AND (id IN (:id, :id_2, :id_3)) AND (name LIKE :name)"
	params := Params{"status": "active", "id": 1, "id_2": 2, "id_3": 3, "name": "A%"}
	d := dialects.GetDialect("postgres")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		compile(sql, params, d)
	}
}

func BenchmarkAdapter_Select(b *testing.B) {
	a := newTestAdapter(b)
	ctx := context.Background()
	qb := a.Select().From("users", "").Where("id", 2)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := qb.Fetch(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
