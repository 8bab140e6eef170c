package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/unimi-net/campus-hub/internal/domain/catalog"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// CatalogRepository is the core's read-only view onto departments, degrees,
// and courses (§4.5 step 1's Dgrp(chat) join).
type CatalogRepository struct {
	conn *Connection
}

func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

var _ catalog.Repository = (*CatalogRepository)(nil)

func (r *CatalogRepository) DegreesForChat(ctx context.Context, chatID shared.ChatID) ([]catalog.DegreeID, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id FROM degrees WHERE group_id = $1
		UNION
		SELECT degree_id FROM courses WHERE group_id = $1
	`, int64(chatID))
	if err != nil {
		return nil, shared.WrapError("catalog", "DegreesForChat", shared.ErrNotFound, "query failed", err)
	}
	defer rows.Close()
	var out []catalog.DegreeID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("catalog", "DegreesForChat", shared.ErrNotFound, "scan failed", err)
		}
		out = append(out, catalog.DegreeID(id))
	}
	return out, rows.Err()
}

func (r *CatalogRepository) FindDegree(ctx context.Context, id catalog.DegreeID) (*catalog.Degree, error) {
	var d catalog.Degree
	var groupID int64
	err := r.conn.QueryRow(ctx, `SELECT id, department_id, name, COALESCE(group_id, 0) FROM degrees WHERE id = $1`, int64(id)).
		Scan(&d.ID, &d.DepartmentID, &d.Name, &groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrDegreeNotFound
		}
		return nil, shared.WrapError("catalog", "FindDegree", shared.ErrNotFound, "query failed", err)
	}
	d.GroupID = shared.ChatID(groupID)
	return &d, nil
}

func (r *CatalogRepository) FindDepartment(ctx context.Context, id catalog.DepartmentID) (*catalog.Department, error) {
	var d catalog.Department
	err := r.conn.QueryRow(ctx, `SELECT id, name FROM departments WHERE id = $1`, int64(id)).Scan(&d.ID, &d.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrDepartmentNotFound
		}
		return nil, shared.WrapError("catalog", "FindDepartment", shared.ErrNotFound, "query failed", err)
	}
	return &d, nil
}

func (r *CatalogRepository) FindCourse(ctx context.Context, id catalog.CourseID) (*catalog.Course, error) {
	var c catalog.Course
	var groupID int64
	err := r.conn.QueryRow(ctx, `SELECT id, degree_id, name, COALESCE(group_id, 0) FROM courses WHERE id = $1`, int64(id)).
		Scan(&c.ID, &c.DegreeID, &c.Name, &groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.WrapError("catalog", "FindCourse", shared.ErrNotFound, "query failed", err)
	}
	c.GroupID = shared.ChatID(groupID)
	return &c, nil
}
