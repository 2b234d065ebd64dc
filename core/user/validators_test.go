package user

import (
	"testing"
	"testing/fstest"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestCheckPassword(t *testing.T) {
	LoadCommonPasswords(fstest.MapFS{
		commonPasswordsAsset: {Data: []byte("password\nPassw0rd!\n\nqwerty\n")},
	}, nopLogger{})
	t.Cleanup(func() { commonPasswords = nil })

	tests := []struct {
		name    string
		pwd     string
		uname   string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcd12345", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcd1234!", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Jonathan1!", uname: "jonathan", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "Passw0rd!", wantTag: pwdNoCommonTag},
		{name: "ok", pwd: "Zq8#mLp2Vx", uname: "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, checkPassword(tt.pwd, "", tt.uname, ""))
		})
	}
}

func TestRegisterUserValidation(t *testing.T) {
	validate := newValidator(t)

	ru := RegisterUser{
		Name:            "Ada",
		Email:           "ada@test.test",
		Password:        "Zq8#mLp2Vx",
		PasswordConfirm: "Zq8#mLp2Vx",
		Role:            "student",
	}
	require.NoError(t, validate.Struct(ru))

	bad := ru
	bad.Role = "admin"
	err := validate.Struct(bad)
	require.Error(t, err)
	verrs := err.(validator.ValidationErrors)
	assert.Equal(t, "role", verrs[0].Field())

	bad = ru
	bad.PasswordConfirm = "nope"
	assert.Error(t, validate.Struct(bad))
}

func TestAllRolesValidation(t *testing.T) {
	validate := newValidator(t)

	nu := NewUser{
		Name:            "Admin",
		Email:           "adm@test.test",
		Password:        "Zq8#mLp2Vx",
		PasswordConfirm: "Zq8#mLp2Vx",
		Roles:           []string{RoleAdmin, RoleInstructor},
	}
	require.NoError(t, validate.Struct(nu))

	nu.Roles = []string{RoleAdmin, "superuser:"}
	assert.Error(t, validate.Struct(nu))
}
