package repository

import (
	"strconv"
	"strings"

	"propel/internal/model"
)

const projectColumns = `p.id, p.title, p.description, p.category, p.creator_id, p.goal_amount, p.current_amount,
       p.currency, p.images, p.video_url, p.status, p.start_date, p.end_date, p.location, p.tags,
       p.created_at, p.updated_at`

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func orderClause(sort string) string {
	switch sort {
	case model.SortEndingSoon:
		return "p.end_date ASC, p.id ASC"
	case model.SortMostFunded:
		return "p.current_amount DESC, p.id DESC"
	default:
		return "p.created_at DESC, p.id DESC"
	}
}

// buildListQuery renders the project listing query for f.
func buildListQuery(f model.ProjectFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Category != "" {
		where = append(where, "p.category = "+next(string(f.Category)))
	}
	if f.Status != "" {
		where = append(where, "p.status = "+next(string(f.Status)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		ph := next("%" + escapeLike(s) + "%")
		where = append(where, "(p.title ILIKE "+ph+` ESCAPE '\'`+
			" OR p.description ILIKE "+ph+` ESCAPE '\'`+
			" OR EXISTS (SELECT 1 FROM unnest(p.tags) AS tag WHERE tag ILIKE "+ph+` ESCAPE '\'))`)
	}

	var b strings.Builder
	b.WriteString("SELECT " + projectColumns + " FROM projects p")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + orderClause(f.Sort))
	b.WriteString(" LIMIT " + next(model.ProjectListSize))
	return b.String(), args
}
