package account

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/troopconnect/troopconnect/core"
	appfs "github.com/troopconnect/troopconnect/fs"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to your email address"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	commonPasswordsPath = "assets/common-passwords.txt"
	commonPasswords     []string
	loadCommonPwdsOnce  sync.Once
)

// InitValidators registers the password policy on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	loadCommonPwdsOnce.Do(func() { commonPasswords = loadCommonPasswords(appfs.FS) })

	validate.RegisterStructValidation(passwordStructValidation, passwordCheck{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

func loadCommonPasswords(fsys fs.FS) []string {
	pwds := make([]string, 0, 128)
	if file, err := fsys.Open(commonPasswordsPath); err == nil {
		//goland:noinspection GoUnhandledErrorResult
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if pwd := strings.TrimSpace(scanner.Text()); pwd != "" && !strings.HasPrefix(pwd, "#") {
				pwds = append(pwds, strings.ToLower(pwd))
			}
		}
	}
	sort.Strings(pwds)
	return pwds
}

// passwordCheck is the struct the password policy is validated on.
type passwordCheck struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

// validatePassword applies the password policy to pwd; email is the account's address.
func validatePassword(validate *validator.Validate, pwd, email string) error {
	return validate.Struct(passwordCheck{Password: pwd, Email: email})
}

func passwordStructValidation(sl validator.StructLevel) {
	if pc, ok := sl.Current().Interface().(passwordCheck); ok {
		checkPassword(pc.Password, pc.Email, sl)
	}
}

// checkPassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no email similarity
// - no common password
func checkPassword(pwd, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	// - minLen: 8
	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	// - no email similarity
	if email != "" {
		local := strings.SplitN(email, "@", 2)[0]
		for _, attr := range []string{email, local} {
			ratio := difflib.NewMatcher(strings.Split(strings.ToLower(pwd), ""), strings.Split(attr, "")).QuickRatio()
			if ratio >= pwdMaxSim {
				reportErr(pwdAttrSimTag)
				return
			}
		}
	}

	// - no common passwords
	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) && commonPasswords[idx] == lpwd {
		reportErr(pwdNoCommonTag)
	}
}
