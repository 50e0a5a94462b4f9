package sqlxrepos

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
)

const uniqueViolation = "23505"

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// q converts `?` placeholders to postgres bindvars.
func q(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// pageClause returns the condition, ordering and limit selecting the rows of page query pg on idCol.
// One extra row is fetched to tell whether more rows exist.
func pageClause(pg core.PageQuery, idCol string, args []interface{}) (string, []interface{}) {
	cond, order := "", "ASC"
	if pg.Cursor != nil {
		if pg.Cursor.Reverse {
			cond, order = fmt.Sprintf(" AND %s < ?", idCol), "DESC"
		} else {
			cond = fmt.Sprintf(" AND %s > ?", idCol)
		}
		args = append(args, pg.Cursor.Position)
	}
	clause := fmt.Sprintf("%s ORDER BY %s %s LIMIT ?", cond, idCol, order)
	return clause, append(args, pg.Limit+1)
}

// trimPage drops the extra row fetched by pageClause and restores ascending order.
func trimPage(n int, pg core.PageQuery, reverse func(i, j int)) (int, bool) {
	hasMore := n > pg.Limit
	if hasMore {
		n = pg.Limit
	}
	if pg.Cursor != nil && pg.Cursor.Reverse {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			reverse(i, j)
		}
	}
	return n, hasMore
}
