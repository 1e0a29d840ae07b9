package identity

import (
	"context"
	"log"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"attendly/internal/apierr"
	"attendly/internal/email"
)

// Roles assignable at registration.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Service handles registration, verification and login.
type Service struct {
	repo   *Repository
	otp    *OTPService
	sender email.Sender
}

// NewService creates an identity service.
func NewService(repo *Repository, otp *OTPService, sender email.Sender) *Service {
	return &Service{repo: repo, otp: otp, sender: sender}
}

// RegisterInstitutionInput are the fields for tenant signup.
type RegisterInstitutionInput struct {
	InstitutionName  string
	InstitutionEmail string
	Password         string
	Phone            string
}

// RegisterInstitution creates the institution, its admin user, and emails a
// verification OTP to the admin.
func (s *Service) RegisterInstitution(ctx context.Context, in RegisterInstitutionInput) (Institution, User, error) {
	if in.InstitutionName == "" || in.InstitutionEmail == "" || in.Password == "" || in.Phone == "" {
		return Institution{}, User{}, apierr.Validation("all fields are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Institution{}, User{}, err
	}

	code, err := s.nextCollegeCode(ctx)
	if err != nil {
		return Institution{}, User{}, err
	}

	inst, err := s.repo.CreateInstitution(ctx, Institution{
		Name:  in.InstitutionName,
		Email: strings.ToLower(in.InstitutionEmail),
		Phone: in.Phone,
		Code:  code,
	})
	if err != nil {
		return Institution{}, User{}, err
	}

	admin, err := s.repo.CreateUser(ctx, User{
		Name:          in.InstitutionName + " Admin",
		Email:         strings.ToLower(in.InstitutionEmail),
		PasswordHash:  string(hash),
		Role:          RoleAdmin,
		InstitutionID: inst.ID,
		CollegeCode:   inst.Code,
		Phone:         in.Phone,
	})
	if err != nil {
		return Institution{}, User{}, err
	}

	if err := s.sendOTP(ctx, admin); err != nil {
		return Institution{}, User{}, err
	}
	return inst, admin, nil
}

// RegisterUserInput are the fields for student/teacher signup.
type RegisterUserInput struct {
	Name            string
	Email           string
	Password        string
	Phone           string
	InstitutionCode string
	Role            string
}

// RegisterUser creates a student or teacher under an existing institution
// and emails a verification OTP.
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Phone == "" || in.InstitutionCode == "" || in.Role == "" {
		return User{}, apierr.Validation("all fields are required")
	}
	if in.Role != RoleStudent && in.Role != RoleTeacher {
		return User{}, apierr.Validation("role must be student or teacher")
	}

	inst, err := s.repo.InstitutionByCode(ctx, in.InstitutionCode)
	if err != nil {
		return User{}, err
	}
	if inst == nil {
		return User{}, apierr.NotFound("institution not found")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	usr, err := s.repo.CreateUser(ctx, User{
		Name:          in.Name,
		Email:         strings.ToLower(in.Email),
		PasswordHash:  string(hash),
		Role:          in.Role,
		InstitutionID: inst.ID,
		CollegeCode:   inst.Code,
		Phone:         in.Phone,
	})
	if err != nil {
		return User{}, err
	}

	if err := s.sendOTP(ctx, usr); err != nil {
		return User{}, err
	}
	return usr, nil
}

// VerifyEmail checks the OTP sent at registration and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, emailAddr, otp string) error {
	if emailAddr == "" || otp == "" {
		return apierr.Validation("otp and email required")
	}
	usr, err := s.repo.UserByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if usr == nil {
		return apierr.NotFound("user not found")
	}
	if usr.EmailVerified {
		return apierr.Validation("email already verified")
	}
	ok, msg := s.otp.Verify(ctx, usr.ID, otp)
	if !ok {
		return apierr.Validation(msg)
	}
	return s.repo.SetEmailVerified(ctx, usr.ID)
}

// Login checks credentials and returns the user on success.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (User, error) {
	if emailAddr == "" {
		return User{}, apierr.Validation("email is required")
	}
	if password == "" {
		return User{}, apierr.Validation("password is required")
	}
	usr, err := s.repo.UserByEmail(ctx, emailAddr)
	if err != nil {
		return User{}, err
	}
	if usr == nil {
		return User{}, apierr.NotFound("user does not exist")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return User{}, apierr.Unauthorized("invalid password")
	}
	return *usr, nil
}

// nextCollegeCode issues the next sequential 6-digit college code.
func (s *Service) nextCollegeCode(ctx context.Context) (string, error) {
	last, err := s.repo.LatestInstitutionCode(ctx)
	if err != nil {
		return "", err
	}
	if last == "" {
		return "100000", nil
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		log.Printf("non-numeric college code %q, restarting sequence", last)
		return "100000", nil
	}
	return strconv.Itoa(n + 1), nil
}

func (s *Service) sendOTP(ctx context.Context, usr User) error {
	otp := s.otp.Generate()
	if err := s.otp.Save(ctx, usr.ID, otp); err != nil {
		return err
	}
	body := "Here's your OTP: <b>" + otp + "</b>. Valid for 5 minutes."
	if err := s.sender.Send(usr.Email, "Verify your Attendly account", body); err != nil {
		return apierr.Upstream("something went wrong while sending email", err)
	}
	return nil
}
