package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/muzammelhussain/krishi-link-server/internal/models"
	"github.com/muzammelhussain/krishi-link-server/internal/utils"
)

// --- Mocks ---

// MockInterestService implements services.IInterestService
type MockInterestService struct {
	mock.Mock
}

func (m *MockInterestService) SubmitInterest(ctx context.Context, cropID utils.SixID, userEmail, userName string, quantity float64, message string) (*models.Interest, *models.Crop, error) {
	args := m.Called(ctx, cropID, userEmail, userName, quantity, message)
	var interest *models.Interest
	var crop *models.Crop
	if args.Get(0) != nil {
		interest = args.Get(0).(*models.Interest)
	}
	if args.Get(1) != nil {
		crop = args.Get(1).(*models.Crop)
	}
	return interest, crop, args.Error(2)
}

func (m *MockInterestService) ListInterestsForUser(ctx context.Context, userEmail string) ([]models.MyInterest, error) {
	args := m.Called(ctx, userEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MyInterest), args.Error(1)
}

func (m *MockInterestService) UpdateInterestStatus(ctx context.Context, interestID utils.SixID, newStatus models.InterestStatus, callerEmail string) (bool, error) {
	args := m.Called(ctx, interestID, newStatus, callerEmail)
	return args.Bool(0), args.Error(1)
}

func (m *MockInterestService) FindInterestByID(ctx context.Context, interestID utils.SixID) (*models.Interest, error) {
	args := m.Called(ctx, interestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Interest), args.Error(1)
}

// MockCropService implements services.ICropService
type MockCropService struct {
	mock.Mock
}

func (m *MockCropService) CreateCrop(ctx context.Context, owner models.CropOwner, name, cropType, location string, quantity float64, unit string, price float64, details string) (*models.Crop, error) {
	args := m.Called(ctx, owner, name, cropType, location, quantity, unit, price, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Crop), args.Error(1)
}

func (m *MockCropService) FindCropByID(ctx context.Context, cropID utils.SixID) (*models.Crop, error) {
	args := m.Called(ctx, cropID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Crop), args.Error(1)
}

func (m *MockCropService) SearchCrops(ctx context.Context, search string) ([]models.Crop, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Crop), args.Error(1)
}

func (m *MockCropService) FindCropsByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error) {
	args := m.Called(ctx, ownerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Crop), args.Error(1)
}

func (m *MockCropService) UpdateCrop(ctx context.Context, cropID utils.SixID, ownerEmail string, updates map[string]interface{}) (*models.Crop, error) {
	args := m.Called(ctx, cropID, ownerEmail, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Crop), args.Error(1)
}

func (m *MockCropService) DeleteCrop(ctx context.Context, cropID utils.SixID, ownerEmail string) error {
	args := m.Called(ctx, cropID, ownerEmail)
	return args.Error(0)
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, name, email, phone, address, photoURL string) (*models.User, bool, error) {
	args := m.Called(ctx, name, email, phone, address, photoURL)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateByEmail(ctx context.Context, email string, updates map[string]interface{}) (*models.User, error) {
	args := m.Called(ctx, email, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
