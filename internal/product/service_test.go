package product

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
	nextID   int64
	products map[int64]*Product
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[int64]*Product)}
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetByName(_ context.Context, name string) (*Product, error) {
	for _, p := range f.products {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, p *Product) error {
	f.nextID++
	p.ProductID = f.nextID
	p.Active = true
	cp := *p
	f.products[p.ProductID] = &cp
	return nil
}

func (f *fakeStore) Overwrite(_ context.Context, p *Product) error {
	if _, ok := f.products[p.ProductID]; !ok {
		return ErrNotFound("No se encontró el producto")
	}
	cp := *p
	f.products[p.ProductID] = &cp
	return nil
}

func (f *fakeStore) ExecRenameWithRelocation(_ context.Context, relocateID int64, relocatedName string, p *Product) error {
	other, ok := f.products[relocateID]
	if !ok {
		return ErrNotFound("No se encontró el producto")
	}
	other.Name = relocatedName
	return f.Overwrite(context.Background(), p)
}

func (f *fakeStore) SoftDelete(_ context.Context, id int64) (int64, error) {
	p, ok := f.products[id]
	if !ok || !p.Active {
		return 0, nil
	}
	p.Active = false
	return 1, nil
}

func (f *fakeStore) ListActiveByName(_ context.Context) ([]Product, error) {
	return f.list(func(p *Product) bool { return p.Active }), nil
}

func (f *fakeStore) ListAvailable(_ context.Context) ([]Product, error) {
	return f.list(func(p *Product) bool { return p.Active && p.Stock > 0 }), nil
}

func (f *fakeStore) ListCritical(_ context.Context) ([]Product, error) {
	return f.list(func(p *Product) bool { return p.Active && p.Stock <= p.CriticalStock }), nil
}

func (f *fakeStore) list(keep func(*Product) bool) []Product {
	var out []Product
	for _, p := range f.products {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func newTestService(store Store) *Service {
	return &Service{store: store, logger: zap.NewNop()}
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	return api.Code
}

func ptr[T any](v T) *T { return &v }

// ===== tests =====

func TestCreateDefaults(t *testing.T) {
	svc := newTestService(newFakeStore())

	resp, err := svc.Create(context.Background(), CreateProductRequest{Name: "  Taladro  "})
	require.NoError(t, err)

	assert.Equal(t, "Taladro", resp.Name)
	assert.Equal(t, 0, resp.Stock)
	assert.Equal(t, 1, resp.CriticalStock)
	assert.False(t, resp.Fungible)
	assert.True(t, resp.State)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ingresa un nombre del producto")

	_, err = svc.Create(context.Background(), CreateProductRequest{Name: "Taladro", Stock: ptr(-1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "igual o mayor a 0")

	_, err = svc.Create(context.Background(), CreateProductRequest{Name: "Taladro", CriticalStock: ptr(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "igual o mayor a 1")
}

func TestCreateDuplicateActiveName(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateProductRequest{Name: "Taladro"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))
	assert.Contains(t, err.Error(), "Ya existe un producto con ese nombre")
}

func TestCreateReactivatesInactiveRow(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro", Stock: ptr(7)})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), created.ID)
	require.NoError(t, err)

	again, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro", Stock: ptr(2)})
	require.NoError(t, err)

	// same row came back with the new values, no duplicate was inserted
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 2, again.Stock)
	assert.True(t, again.State)
	assert.Len(t, fs.products, 1)
}

func TestUpdateRenameOntoActiveNameConflicts(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro"})
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), CreateProductRequest{Name: "Sierra"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), other.ID, UpdateProductRequest{Name: ptr("Taladro")})
	require.Error(t, err)
	assert.Equal(t, CodeConflict, apiCode(t, err))
	assert.Contains(t, err.Error(), "Ya existe un producto activo con ese nombre")
}

func TestUpdateRenameRelocatesInactiveRow(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	old, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro"})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), old.ID)
	require.NoError(t, err)

	other, err := svc.Create(context.Background(), CreateProductRequest{Name: "Sierra"})
	require.NoError(t, err)

	resp, err := svc.Update(context.Background(), other.ID, UpdateProductRequest{Name: ptr("Taladro")})
	require.NoError(t, err)
	assert.Equal(t, "Taladro", resp.Name)

	// the inactive row kept its history under a suffixed name
	relocated, err := fs.GetByID(context.Background(), old.ID)
	require.NoError(t, err)
	require.NotNil(t, relocated)
	assert.Equal(t, "Taladro-1", relocated.Name)
	assert.False(t, relocated.Active)
}

func TestUpdateUnknownProduct(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Update(context.Background(), 99, UpdateProductRequest{Stock: ptr(3)})
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestDeleteIsSoft(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Taladro", Stock: ptr(4)})
	require.NoError(t, err)

	resp, err := svc.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, resp.State)
	assert.Equal(t, 4, fs.products[created.ID].Stock)

	// deleting twice reports not found
	_, err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestLists(t *testing.T) {
	svc := newTestService(newFakeStore())

	for _, p := range []CreateProductRequest{
		{Name: "Alicate", Stock: ptr(0), CriticalStock: ptr(2)},
		{Name: "Taladro", Stock: ptr(5), CriticalStock: ptr(2)},
		{Name: "Sierra", Stock: ptr(1), CriticalStock: ptr(2)},
	} {
		_, err := svc.Create(context.Background(), p)
		require.NoError(t, err)
	}

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "Alicate", active[0].Name)

	available, err := svc.ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 2)

	critical, err := svc.ListCritical(context.Background())
	require.NoError(t, err)
	require.Len(t, critical, 2)
	assert.Equal(t, "Alicate", critical[0].Name)
	assert.Equal(t, "Sierra", critical[1].Name)
}
