package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"techsched/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetTechnician(ctx context.Context, id int64) (*model.Technician, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*model.Technician), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]model.Technician), args.Error(1)
}

func (m *mockStore) ListTechniciansByType(ctx context.Context, techType string, activeOnly bool) ([]model.Technician, error) {
	args := m.Called(ctx, techType, activeOnly)
	return args.Get(0).([]model.Technician), args.Error(1)
}

var plumbers = []model.Technician{
	{ID: 1, Name: "Nicolas Woollett", Type: "Plumber", WorkingHoursStart: 9, WorkingHoursEnd: 17, IsActive: true},
}

func TestListByType_NormalisesType(t *testing.T) {
	store := new(mockStore)
	store.On("ListTechniciansByType", mock.Anything, "Plumber", true).Return(plumbers, nil).Twice()

	d := New(store, nil)
	for _, q := range []string{"plumber", "  PLUMBER "} {
		got, err := d.ListByType(context.Background(), q, true)
		require.NoError(t, err)
		assert.Equal(t, plumbers, got)
	}
	store.AssertExpectations(t)
}

func TestListByType_EmptyIsNotError(t *testing.T) {
	store := new(mockStore)
	store.On("ListTechniciansByType", mock.Anything, "Carpenter", true).Return([]model.Technician(nil), nil)

	got, err := New(store, nil).ListByType(context.Background(), "carpenter", true)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByType_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := new(mockStore)
	store.On("ListTechniciansByType", mock.Anything, "Plumber", true).Return(plumbers, nil).Twice()

	d := New(store, nil)
	d.UseRedisCache(client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := d.ListByType(ctx, "plumber", true)
		require.NoError(t, err)
		assert.Equal(t, plumbers, got)
	}
	store.AssertNumberOfCalls(t, "ListTechniciansByType", 1)
	assert.True(t, mr.Exists("techsched:technicians:type:Plumber:true"))

	require.NoError(t, d.Invalidate(ctx))
	assert.False(t, mr.Exists("techsched:technicians:type:Plumber:true"))

	_, err := d.ListByType(ctx, "plumber", true)
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "ListTechniciansByType", 2)
}

func TestListByType_CacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := new(mockStore)
	store.On("ListTechniciansByType", mock.Anything, "Plumber", false).Return(plumbers, nil)

	d := New(store, nil)
	d.UseRedisCache(client, time.Minute)
	ctx := context.Background()

	_, err := d.ListByType(ctx, "plumber", false)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = d.ListByType(ctx, "plumber", false)
	require.NoError(t, err)

	store.AssertNumberOfCalls(t, "ListTechniciansByType", 2)
}

func TestGet(t *testing.T) {
	store := new(mockStore)
	store.On("GetTechnician", mock.Anything, int64(1)).Return(&plumbers[0], nil)
	store.On("GetTechnician", mock.Anything, int64(9)).Return(nil, model.ErrTechnicianNotFound)

	d := New(store, nil)
	tech, err := d.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Nicolas Woollett", tech.Name)

	_, err = d.Get(context.Background(), 9)
	assert.ErrorIs(t, err, model.ErrTechnicianNotFound)
}

func TestList(t *testing.T) {
	store := new(mockStore)
	store.On("ListTechnicians", mock.Anything, false).Return([]model.Technician(nil), nil)

	got, err := New(store, nil).List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []model.Technician{}, got)
}

func TestInvalidate_NoRedis(t *testing.T) {
	assert.NoError(t, New(new(mockStore), nil).Invalidate(context.Background()))
}
