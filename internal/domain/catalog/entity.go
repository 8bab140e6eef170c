// Package catalog models the read-only university catalog entities the
// core joins against: Degree, Department, Course. Everything else about
// the catalog (CRUD, the public serialization API, bulk import) is out of
// scope per §1 — the core only reads group↔degree associations.
package catalog

import "github.com/unimi-net/campus-hub/internal/domain/shared"

// DegreeID identifies a Degree program.
type DegreeID int64

// DepartmentID identifies a Department.
type DepartmentID int64

// CourseID identifies a Course offered within a Degree.
type CourseID int64

// Department groups a set of Degrees under a faculty.
type Department struct {
	ID   DepartmentID
	Name string
}

// Degree is a study program with a flagship group chat.
type Degree struct {
	ID           DegreeID
	DepartmentID DepartmentID
	Name         string
	// GroupID is the degree's flagship group, one of the two ways a chat
	// maps to a Dgrp set in §4.5 step 1.
	GroupID shared.ChatID
}

// Course is taught within a Degree and may have its own per-course group.
type Course struct {
	ID       CourseID
	DegreeID DegreeID
	Name     string
	// GroupID is the course's own group chat, the other leg of §4.5 step 1's
	// join: course.group ↔ chat_id.
	GroupID shared.ChatID
}
