package users

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ===== in-memory store =====

type fakeStore struct {
	nextID    int64
	borrowers map[int64]*BorrowerDetail
	degrees   []Degree
}

func newFakeStore() *fakeStore {
	return &fakeStore{borrowers: make(map[int64]*BorrowerDetail)}
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*BorrowerDetail, error) {
	d, ok := f.borrowers[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) GetByRut(_ context.Context, rut string) (*BorrowerDetail, error) {
	for _, d := range f.borrowers {
		if d.Rut == rut {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ExecCreate(_ context.Context, b *Borrower, degreeCode, role *string) error {
	f.nextID++
	b.BorrowerID = f.nextID
	b.Active = true
	f.borrowers[b.BorrowerID] = &BorrowerDetail{Borrower: *b, DegreeCode: degreeCode, Role: role}
	return nil
}

func (f *fakeStore) ExecUpdate(_ context.Context, b *Borrower, degreeCode, role *string) error {
	d, ok := f.borrowers[b.BorrowerID]
	if !ok {
		return ErrNotFound("El usuario que se intenta actualizar no existe")
	}
	d.Borrower = *b
	if degreeCode != nil {
		d.DegreeCode = degreeCode
	}
	if role != nil {
		d.Role = role
	}
	return nil
}

func (f *fakeStore) SoftDelete(_ context.Context, id int64) (int64, error) {
	d, ok := f.borrowers[id]
	if !ok || !d.Active {
		return 0, nil
	}
	d.Active = false
	return 1, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]BorrowerDetail, error) {
	return f.list(func(*BorrowerDetail) bool { return true }), nil
}

func (f *fakeStore) ListActiveByType(_ context.Context, borrowerType string) ([]BorrowerDetail, error) {
	return f.list(func(d *BorrowerDetail) bool { return d.Active && d.Type == borrowerType }), nil
}

func (f *fakeStore) ListDegrees(_ context.Context) ([]Degree, error) {
	return f.degrees, nil
}

func (f *fakeStore) list(keep func(*BorrowerDetail) bool) []BorrowerDetail {
	var out []BorrowerDetail
	for _, d := range f.borrowers {
		if keep(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowerID < out[j].BorrowerID })
	return out
}

func newTestService(store Store) *Service {
	return &Service{store: store, logger: zap.NewNop()}
}

func ptr[T any](v T) *T { return &v }

// ===== tests =====

func TestCreateNormalizes(t *testing.T) {
	svc := newTestService(newFakeStore())

	resp, err := svc.Create(context.Background(), CreateUserRequest{
		Rut:    " 12.345.678-k ",
		Name:   "  maría pérez ",
		Mail:   ptr(" Maria.Perez@USACH.cl "),
		Type:   TypeStudent,
		Degree: ptr("ING-EL"),
	})
	require.NoError(t, err)

	assert.Equal(t, "12.345.678-K", resp.Rut)
	assert.Equal(t, "MARÍA PÉREZ", resp.Name)
	require.NotNil(t, resp.Mail)
	assert.Equal(t, "maria.perez@usach.cl", *resp.Mail)
	assert.True(t, resp.State)
	require.NotNil(t, resp.Degree)
	assert.Equal(t, "ING-EL", *resp.Degree)
}

func TestCreateExistingRutReturnsStoredBorrower(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	first, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "11.111.111-1", Name: "Juan Soto", Type: TypeTeacher,
	})
	require.NoError(t, err)

	// same rut, different data: the stored borrower wins untouched
	again, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: " 11.111.111-1 ", Name: "Otro Nombre", Type: TypeTeacher,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "JUAN SOTO", again.Name)
	assert.Len(t, fs.borrowers, 1)
}

func TestCreateStudentRequiresDegree(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "11.111.111-1", Name: "Juan Soto", Type: TypeStudent,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Un estudiante debe tener una carrera")
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "11.111.111-1", Name: "Juan Soto", Type: "Janitor",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "El tipo de usuario no es válido")
}

func TestUpdateKeepsTypeAndRut(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	created, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "11.111.111-1", Name: "Juan Soto", Type: TypeAssistant, Role: ptr("pañolero"),
	})
	require.NoError(t, err)

	resp, err := svc.Update(context.Background(), created.ID, UpdateUserRequest{
		Name:        ptr("juan a. soto"),
		PhoneNumber: ptr("+56911111111"),
	})
	require.NoError(t, err)

	assert.Equal(t, "JUAN A. SOTO", resp.Name)
	assert.Equal(t, "11.111.111-1", resp.Rut)
	assert.Equal(t, TypeAssistant, resp.Type)
	require.NotNil(t, resp.Role)
	assert.Equal(t, "pañolero", *resp.Role)
}

func TestDeleteIsSoft(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	created, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "11.111.111-1", Name: "Juan Soto", Type: TypeTeacher,
	})
	require.NoError(t, err)

	resp, err := svc.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, resp.State)

	// the row survives and still shows up in the unfiltered list
	all, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].State)

	_, err = svc.Delete(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "El usuario que se intenta eliminar no existe")
}

func TestListByTypeFiltersInactive(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "1-9", Name: "Ana", Type: TypeStudent, Degree: ptr("ING-EL"),
	})
	require.NoError(t, err)
	teacher, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "2-7", Name: "Beto", Type: TypeTeacher,
	})
	require.NoError(t, err)
	gone, err := svc.Create(context.Background(), CreateUserRequest{
		Rut: "3-5", Name: "Caro", Type: TypeTeacher,
	})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), gone.ID)
	require.NoError(t, err)

	teachers, err := svc.ListByType(context.Background(), TypeTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, teacher.ID, teachers[0].ID)

	students, err := svc.ListByType(context.Background(), TypeStudent)
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestListDegrees(t *testing.T) {
	fs := newFakeStore()
	fs.degrees = []Degree{{Code: "ING-EL", Name: "Ingeniería Eléctrica"}}
	svc := newTestService(fs)

	out, err := svc.ListDegrees(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ING-EL", out[0].Code)
	assert.Equal(t, "Ingeniería Eléctrica", out[0].Name)
}
