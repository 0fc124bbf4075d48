package dummydb

import (
	"context"
	"sort"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/assignment"
)

// deleteAssignment removes an assignment with its submissions. The caller holds the write lock.
func (db *DB) deleteAssignment(id string) []string {
	var paths []string
	if asg, ok := db.assignments[id]; ok && asg.HasFile() {
		paths = append(paths, asg.FilePath)
	}
	for subID, sub := range db.submissions {
		if sub.AssignmentID == id {
			paths = append(paths, sub.FilePath)
			delete(db.submissions, subID)
		}
	}
	delete(db.assignments, id)
	return paths
}

// withComputed fills the fields the sql engine derives through joins.
func (db *DB) withComputed(sub assignment.Submission) assignment.Submission {
	sub.StudentName = db.users[sub.StudentID].FullName
	if asg, ok := db.assignments[sub.AssignmentID]; ok {
		sub.IsLate = sub.SubmittedAt.After(asg.DueDate)
	}
	return sub
}

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, asg assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg.ID = newID()
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, filter assignment.GetFilter, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asg, ok := repo.db.assignments[filter.ID]
	if !ok || !repo.db.courseVisible(asg.CourseID, filter.TeacherID, filter.StudentID) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return asg, nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asg assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[asg.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.assignments[asg.ID] = asg
	return asg, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return nil, assignment.ErrNotFound
	}
	return repo.db.deleteAssignment(id), nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, courseID string, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.CourseID == courseID {
			assignments = append(assignments, asg)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].DueDate.Before(assignments[j].DueDate) })
	return assignments, nil
}

func (repo *assignmentRepository) MaxGrade(_ context.Context, assignmentID string, _ ...core.DBExecutor) (float64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var maxGrade float64
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.Grade != nil && *sub.Grade > maxGrade {
			maxGrade = *sub.Grade
		}
	}
	return maxGrade, nil
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, sub assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID {
			return assignment.Submission{}, core.NewConflictError("you already submitted this assignment")
		}
	}
	sub.ID = newID()
	sub.StudentName, sub.IsLate = "", false
	repo.db.submissions[sub.ID] = sub
	return repo.db.withComputed(sub), nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, filter assignment.SubmissionFilter, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sub assignment.Submission
	var found bool
	switch {
	case filter.ID != "":
		sub, found = repo.db.submissions[filter.ID]
	case filter.AssignmentID != "" && filter.StudentID != "":
		for _, s := range repo.db.submissions {
			if s.AssignmentID == filter.AssignmentID && s.StudentID == filter.StudentID {
				sub, found = s, true
				break
			}
		}
	}
	if !found || (filter.StudentID != "" && sub.StudentID != filter.StudentID) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	if filter.TeacherID != "" {
		asg := repo.db.assignments[sub.AssignmentID]
		if !repo.db.courseVisible(asg.CourseID, filter.TeacherID, "") {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
	}
	return repo.db.withComputed(sub), nil
}

func (repo *assignmentRepository) UpdateSubmission(_ context.Context, sub assignment.Submission, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	sub.StudentName, sub.IsLate = "", false
	repo.db.submissions[sub.ID] = sub
	return repo.db.withComputed(sub), nil
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, repo.db.withComputed(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}
