package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/localnerve/casedocs/internal/authz"
	"github.com/localnerve/casedocs/internal/models"
	"github.com/localnerve/casedocs/internal/outbox"
	"github.com/localnerve/casedocs/internal/search"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// statusJoin links documents to their definition's ordered status
// vocabulary so statuses sort by configured order, not lexicographically.
const statusJoin = "LEFT JOIN document_definition_status ON " +
	"document_definition_status.definition_name = document.definition_name AND " +
	"document_definition_status.key = document.internal_status_key"

// SearchResult is one page of documents plus the total match count under
// the identical predicates.
type SearchResult struct {
	Documents []models.Document
	Total     int64
}

// Search compiles the request into predicates, intersects the authorization
// collaborator's query specification, and returns the matching page. Every
// successful search emits a documents-listed event carrying the
// materialized results.
func (s *Service) Search(ctx context.Context, definitionName string, req search.AdvancedSearchRequest, page *search.Page) (*SearchResult, error) {
	query, compiler, grouped, err := s.searchQuery(ctx, definitionName, req)
	if err != nil {
		return nil, err
	}

	total, err := s.countQuery(ctx, definitionName, req)
	if err != nil {
		return nil, err
	}

	groupExprs := []string{"document.id"}
	for _, sort := range req.Sort {
		if search.IsStatusSort(sort.Path) {
			dir := "ASC"
			if sort.Direction == search.SortDesc {
				dir = "DESC"
			}
			query = query.Joins(statusJoin).
				Order("document_definition_status.sort_order " + dir)
			groupExprs = append(groupExprs, "document_definition_status.sort_order")
			continue
		}
		order, err := compiler.OrderBy(sort)
		if err != nil {
			return nil, err
		}
		query = query.Order(order.SQL)
		groupExprs = append(groupExprs, order.GroupExpr)
	}

	// the authorization spec may have joined a one-to-many table; group on
	// the id plus every sort expression to keep the query valid
	if grouped {
		query = query.Group(strings.Join(groupExprs, ", "))
	}

	if page != nil {
		query = query.Offset(page.Offset()).Limit(page.Size)
	}

	var docs []models.Document
	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}

	s.logger.Debug("documents searched",
		zap.String("definition", definitionName),
		zap.Int("results", len(docs)), zap.Int64("total", total))
	s.events.Send(outbox.CaseEvent{
		Type:           outbox.DocumentsListed,
		DefinitionName: definitionName,
		Actor:          actor(ctx),
		Payload:        docs,
	})

	return &SearchResult{Documents: docs, Total: total}, nil
}

// Count runs the identical predicate construction and counts distinct
// matches. Never derived from a previously fetched page, so it stays
// correct under concurrent writes.
func (s *Service) Count(ctx context.Context, definitionName string, req search.AdvancedSearchRequest) (int64, error) {
	return s.countQuery(ctx, definitionName, req)
}

func (s *Service) countQuery(ctx context.Context, definitionName string, req search.AdvancedSearchRequest) (int64, error) {
	query, _, _, err := s.searchQuery(ctx, definitionName, req)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := query.Distinct("document.id").Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// searchQuery builds the scoped, authorization-intersected base query. The
// returned flag reports whether the authorization spec joined a
// one-to-many table, forcing grouped results.
func (s *Service) searchQuery(ctx context.Context, definitionName string, req search.AdvancedSearchRequest) (*gorm.DB, *search.Compiler, bool, error) {
	spec, err := s.access.QuerySpec(ctx, authz.EntityDocument, authz.ActionView)
	if err != nil {
		return nil, nil, false, err
	}
	user, _ := authz.UserFrom(ctx)

	predicate, err := search.Build(definitionName, req, user.ID, spec.Predicate)
	if err != nil {
		return nil, nil, false, err
	}

	compiler := search.NewCompiler(s.db)
	where, args, err := compiler.Render(predicate)
	if err != nil {
		return nil, nil, false, err
	}

	query := s.db.WithContext(ctx).Model(&models.Document{})
	for _, join := range spec.Joins {
		query = query.Joins("LEFT JOIN " + join.Table + " ON " + join.On)
	}
	if where != "" {
		query = query.Where(where, args...)
	}
	if s.searchTimeout > 0 && compiler.Dialect == "mysql" {
		query = query.Clauses(hints.New(fmt.Sprintf("MAX_EXECUTION_TIME(%d)", s.searchTimeout.Milliseconds())))
	}
	return query, compiler, len(spec.Joins) > 0, nil
}
