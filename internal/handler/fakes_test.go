package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserService struct {
	listFn   func(service.ListUsersInput) (*service.ListUsersOutput, error)
	getFn    func(id string) (*model.User, error)
	createFn func(service.CreateUserInput) (*model.User, error)
	updateFn func(service.UpdateUserInput) (*model.User, error)
	deleteFn func(id string) error
}

func (f *fakeUserService) ListUsers(_ context.Context, in service.ListUsersInput) (*service.ListUsersOutput, error) {
	return f.listFn(in)
}

func (f *fakeUserService) GetUser(_ context.Context, id string) (*model.User, error) {
	return f.getFn(id)
}

func (f *fakeUserService) CreateUser(_ context.Context, in service.CreateUserInput) (*model.User, error) {
	return f.createFn(in)
}

func (f *fakeUserService) UpdateUser(_ context.Context, in service.UpdateUserInput) (*model.User, error) {
	return f.updateFn(in)
}

func (f *fakeUserService) DeleteUser(_ context.Context, id string) error {
	return f.deleteFn(id)
}

type fakeWelcomeSender struct {
	fn func(userID string) (*service.WelcomeResult, error)
}

func (f *fakeWelcomeSender) SendWelcome(_ context.Context, userID string) (*service.WelcomeResult, error) {
	return f.fn(userID)
}

type fakeEmailService struct {
	listFn       func(userID string) ([]model.Email, error)
	addFn        func(userID string, in service.AddEmailInput) (*model.Email, error)
	updateFn     func(userID, emailID string, in service.UpdateEmailInput) (*model.Email, error)
	deleteFn     func(userID, emailID string) error
	setPrimaryFn func(userID, emailID string) (*model.Email, error)
}

func (f *fakeEmailService) ListUserEmails(_ context.Context, userID string) ([]model.Email, error) {
	return f.listFn(userID)
}

func (f *fakeEmailService) AddEmail(_ context.Context, userID string, in service.AddEmailInput) (*model.Email, error) {
	return f.addFn(userID, in)
}

func (f *fakeEmailService) UpdateEmail(_ context.Context, userID, emailID string, in service.UpdateEmailInput) (*model.Email, error) {
	return f.updateFn(userID, emailID, in)
}

func (f *fakeEmailService) DeleteEmail(_ context.Context, userID, emailID string) error {
	return f.deleteFn(userID, emailID)
}

func (f *fakeEmailService) SetPrimaryEmail(_ context.Context, userID, emailID string) (*model.Email, error) {
	return f.setPrimaryFn(userID, emailID)
}

func sampleUser() *model.User {
	phone := "+1 555 0100"
	return &model.User{
		ID:        "01HZUSER",
		FirstName: "Jane",
		LastName:  "Doe",
		Phone:     &phone,
		Emails: []model.Email{
			{ID: "01HZE1", UserID: "01HZUSER", Address: "jane@example.com", IsPrimary: true},
			{ID: "01HZE2", UserID: "01HZUSER", Address: "jane.work@example.com"},
		},
	}
}
