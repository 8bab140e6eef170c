package catalog

import (
	"context"

	"github.com/unimi-net/campus-hub/internal/domain/shared"
)

// Repository is the core's read-only view onto the catalog.
type Repository interface {
	// DegreesForChat implements §4.5 step 1: every Degree whose flagship
	// group is chatID, OR that owns a Course whose group is chatID.
	DegreesForChat(ctx context.Context, chatID shared.ChatID) ([]DegreeID, error)

	FindDegree(ctx context.Context, id DegreeID) (*Degree, error)
	FindDepartment(ctx context.Context, id DepartmentID) (*Department, error)
	FindCourse(ctx context.Context, id CourseID) (*Course, error)
}
