package dummydb

import (
	"context"
	"sort"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/course"
)

// deleteCourse removes a course with everything hanging off it and returns the referenced file paths.
// The caller holds the write lock.
func (db *DB) deleteCourse(id string) []string {
	var paths []string
	for matID, mat := range db.materials {
		if mat.CourseID == id {
			paths = append(paths, mat.FilePath)
			delete(db.materials, matID)
		}
	}
	for asgID, asg := range db.assignments {
		if asg.CourseID == id {
			paths = append(paths, db.deleteAssignment(asgID)...)
		}
	}
	for qzID, qz := range db.quizzes {
		if qz.CourseID == id {
			db.deleteQuiz(qzID)
		}
	}
	for k := range db.enrollments {
		if k.courseID == id {
			delete(db.enrollments, k)
		}
	}
	delete(db.courses, id)
	return paths
}

// courseVisible applies the teacher / enrolled student restriction of a lookup.
// The caller holds the read lock.
func (db *DB) courseVisible(courseID, teacherID, studentID string) bool {
	crs, ok := db.courses[courseID]
	if !ok {
		return false
	}
	if teacherID != "" && crs.TeacherID != teacherID {
		return false
	}
	if studentID != "" {
		if _, ok = db.enrollments[enrollmentKey{studentID: studentID, courseID: courseID}]; !ok {
			return false
		}
	}
	return true
}

func (db *DB) summary(crs course.Course) course.Summary {
	s := course.Summary{Course: crs, TeacherName: db.users[crs.TeacherID].FullName}
	for k := range db.enrollments {
		if k.courseID == crs.ID {
			s.StudentCount++
		}
	}
	for _, asg := range db.assignments {
		if asg.CourseID == crs.ID {
			s.AssignmentCount++
		}
	}
	for _, qz := range db.quizzes {
		if qz.CourseID == crs.ID {
			s.QuizCount++
		}
	}
	return s
}

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.courses {
		if c.Code == crs.Code {
			return course.Course{}, course.ErrCodeTaken
		}
	}
	crs.ID = newID()
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, filter course.GetFilter, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	id := filter.ID
	if id == "" && filter.Code != "" {
		for _, c := range repo.db.courses {
			if c.Code == filter.Code {
				id = c.ID
				break
			}
		}
	}
	if id == "" || !repo.db.courseVisible(id, filter.TeacherID, filter.StudentID) {
		return course.Course{}, course.ErrNotFound
	}
	return repo.db.courses[id], nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Name = crs.Name
	orig.Description = crs.Description
	orig.UpdatedAt = crs.UpdatedAt
	repo.db.courses[crs.ID] = orig
	return orig, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return nil, course.ErrNotFound
	}
	return repo.db.deleteCourse(id), nil
}

func (repo *courseRepository) QueryTeacherCourses(_ context.Context, teacherID string, _ ...core.DBExecutor) ([]course.Summary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	summaries := make([]course.Summary, 0)
	for _, crs := range repo.db.courses {
		if teacherID == "" || crs.TeacherID == teacherID {
			summaries = append(summaries, repo.db.summary(crs))
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].CreatedAt.After(summaries[j].CreatedAt) })
	return summaries, nil
}

func (repo *courseRepository) QueryStudentCourses(_ context.Context, studentID string, _ ...core.DBExecutor) ([]course.Summary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	summaries := make([]course.Summary, 0)
	for k := range repo.db.enrollments {
		if k.studentID == studentID {
			if crs, ok := repo.db.courses[k.courseID]; ok {
				summaries = append(summaries, repo.db.summary(crs))
			}
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := enrollmentKey{studentID: enr.StudentID, courseID: enr.CourseID}
	if _, ok := repo.db.enrollments[key]; ok {
		return course.ErrAlreadyEnrolled
	}
	if _, ok := repo.db.courses[enr.CourseID]; !ok {
		return course.ErrNotFound
	}
	repo.db.enrollments[key] = enr
	return nil
}

func (repo *courseRepository) EnrollmentExists(_ context.Context, studentID, courseID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.enrollments[enrollmentKey{studentID: studentID, courseID: courseID}]
	return ok, nil
}

func (repo *courseRepository) QueryStudents(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]course.Student, 0)
	for k, enr := range repo.db.enrollments {
		if k.courseID != courseID {
			continue
		}
		usr := repo.db.users[k.studentID]
		students = append(students, course.Student{
			ID:         usr.ID,
			FullName:   usr.FullName,
			Email:      usr.Email,
			EnrolledAt: enr.EnrolledAt,
		})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName < students[j].FullName })
	return students, nil
}

func (repo *courseRepository) CreateMaterial(_ context.Context, mat course.Material, _ ...core.DBExecutor) (course.Material, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[mat.CourseID]; !ok {
		return course.Material{}, course.ErrNotFound
	}
	mat.ID = newID()
	repo.db.materials[mat.ID] = mat
	return mat, nil
}

func (repo *courseRepository) GetMaterial(_ context.Context, filter course.MaterialFilter, _ ...core.DBExecutor) (course.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	mat, ok := repo.db.materials[filter.ID]
	if !ok || !repo.db.courseVisible(mat.CourseID, filter.TeacherID, filter.StudentID) {
		return course.Material{}, course.ErrMaterialNotFound
	}
	return mat, nil
}

func (repo *courseRepository) QueryMaterials(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Material, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	materials := make([]course.Material, 0)
	for _, mat := range repo.db.materials {
		if mat.CourseID == courseID {
			materials = append(materials, mat)
		}
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].UploadedAt.After(materials[j].UploadedAt) })
	return materials, nil
}

func (repo *courseRepository) DeleteMaterial(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return course.ErrMaterialNotFound
	}
	delete(repo.db.materials, id)
	return nil
}
