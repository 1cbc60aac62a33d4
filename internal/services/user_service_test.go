package services

import (
	"sync"
	"testing"
	"time"

	"cogi/internal/models"
	"cogi/internal/password"
	"cogi/internal/testutil"

	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T) (UserServicer, func()) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))
	return svc, func() { testutil.TeardownTestDB(t, db) }
}

func TestCreateUser(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		user, err := svc.CreateUser(CreateUserInput{
			Email:     "alice@example.com",
			Password:  "Str0ng!pass",
			FirstName: "Alice",
			LastName:  "Smith",
		})
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected email alice@example.com, got %s", user.Email)
		}
		if user.Confirmed {
			t.Error("expected new user to be unconfirmed")
		}
		if user.FailedLoginAttempts != 0 {
			t.Errorf("expected 0 failed attempts, got %d", user.FailedLoginAttempts)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		_, err := svc.CreateUser(CreateUserInput{Email: "dup@example.com", Password: "Str0ng!pass"})
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser(CreateUserInput{Email: "DUP@example.com", Password: "Other!pass9"})
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("empty_email", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		_, err := svc.CreateUser(CreateUserInput{Password: "Str0ng!pass"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("email_normalized_to_lowercase", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		user, err := svc.CreateUser(CreateUserInput{Email: "  Alice@EXAMPLE.COM ", Password: "Str0ng!pass"})
		testutil.AssertNoError(t, err)

		if user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
	})

	t.Run("password_is_hashed", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		user, err := svc.CreateUser(CreateUserInput{Email: "hash@example.com", Password: "Str0ng!pass"})
		testutil.AssertNoError(t, err)

		if user.Password == "Str0ng!pass" {
			t.Error("password should be hashed, not stored as plaintext")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Str0ng!pass")); err != nil {
			t.Error("password hash should be valid bcrypt")
		}
	})

	t.Run("concurrent_duplicates_create_one_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.CreateUser(CreateUserInput{Email: "race@example.com", Password: "Str0ng!pass"})
			}()
		}
		wg.Wait()

		var count int64
		db.Model(&models.User{}).Where("email = ?", "race@example.com").Count(&count)
		if count != 1 {
			t.Errorf("expected exactly one user, got %d", count)
		}
	})
}

func TestGetUserByEmail(t *testing.T) {
	t.Run("found_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		created := testutil.CreateTestUserWithEmail(t, db, "found@example.com")
		user, err := svc.GetUserByEmail("Found@Example.com")
		testutil.AssertNoError(t, err)

		if user.ID != created.ID {
			t.Errorf("expected user ID %s, got %s", created.ID, user.ID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		_, err := svc.GetUserByEmail("nonexistent@example.com")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestGetUserByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		created := testutil.CreateTestUser(t, db)
		user, err := svc.GetUserByID(created.ID)
		testutil.AssertNoError(t, err)

		if user.Email != created.Email {
			t.Errorf("expected email %s, got %s", created.Email, user.Email)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		_, err := svc.GetUserByID("0190c1c2-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestCheckPassword(t *testing.T) {
	t.Run("correct", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		user := testutil.CreateTestUser(t, db)
		if !svc.CheckPassword(user, testutil.TestPassword) {
			t.Error("expected password verification to succeed")
		}
	})

	t.Run("incorrect", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		user := testutil.CreateTestUser(t, db)
		if svc.CheckPassword(user, "wrongpassword") {
			t.Error("expected password verification to fail")
		}
	})

	t.Run("legacy_hash_is_upgraded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		user := testutil.CreateTestUser(t, db)
		legacy := "pbkdf2:sha256:1000$abcdefghijklmnop$6cf1d5d2d8ef2b5ee831844d8e9c4ed882192607f907e3615cb68d5bf9f70b92"
		db.Model(user).Update("password", legacy)
		user.Password = legacy

		if !svc.CheckPassword(user, "Secret#123") {
			t.Fatal("expected legacy hash to verify")
		}

		var stored models.User
		db.First(&stored, "id = ?", user.ID)
		if stored.Password == legacy {
			t.Error("expected legacy hash to be replaced")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Secret#123")); err != nil {
			t.Error("expected upgraded hash to be bcrypt")
		}
	})
}

func TestMarkConfirmed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

	testutil.CreateUnconfirmedUser(t, db, "confirm@example.com")

	user, err := svc.MarkConfirmed("confirm@example.com")
	testutil.AssertNoError(t, err)
	if !user.Confirmed || user.ConfirmedAt == nil {
		t.Fatal("expected user to be confirmed with a timestamp")
	}

	// Confirming again is harmless.
	_, err = svc.MarkConfirmed("confirm@example.com")
	testutil.AssertNoError(t, err)

	_, err = svc.MarkConfirmed("missing@example.com")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestResetPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

	user := testutil.CreateTestUser(t, db)
	db.Model(user).Update("failed_login_attempts", 3)

	err := svc.ResetPassword(user.Email, "N3w!password")
	testutil.AssertNoError(t, err)

	stored, err := svc.GetUserByEmail(user.Email)
	testutil.AssertNoError(t, err)
	if !svc.CheckPassword(stored, "N3w!password") {
		t.Error("expected new password to verify")
	}
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("expected attempts to be cleared, got %d", stored.FailedLoginAttempts)
	}

	err = svc.ResetPassword("missing@example.com", "N3w!password")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
}

func TestRecordLoginAttempt(t *testing.T) {
	t.Run("failure_increments", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		user := testutil.CreateTestUser(t, db)
		for want := 1; want <= 3; want++ {
			got, err := svc.RecordLoginAttempt(user.Email, false)
			testutil.AssertNoError(t, err)
			if got != want {
				t.Errorf("expected %d attempts, got %d", want, got)
			}
		}
	})

	t.Run("success_resets_and_stamps_login", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

		user := testutil.CreateTestUser(t, db)
		db.Model(user).Update("failed_login_attempts", 3)

		got, err := svc.RecordLoginAttempt(user.Email, true)
		testutil.AssertNoError(t, err)
		if got != 0 {
			t.Errorf("expected 0 attempts, got %d", got)
		}

		stored, _ := svc.GetUserByEmail(user.Email)
		if stored.LastLoginAt == nil || time.Since(*stored.LastLoginAt) > time.Minute {
			t.Error("expected LastLoginAt to be set")
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		svc, done := newTestUserService(t)
		defer done()

		_, err := svc.RecordLoginAttempt("nobody@example.com", false)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestResetLoginAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(db, password.NewHasher(bcrypt.MinCost))

	user := testutil.CreateTestUser(t, db)
	db.Model(user).Update("failed_login_attempts", 5)

	testutil.AssertNoError(t, svc.ResetLoginAttempts(user.Email))

	stored, _ := svc.GetUserByEmail(user.Email)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("expected 0 attempts, got %d", stored.FailedLoginAttempts)
	}

	testutil.AssertAppError(t, svc.ResetLoginAttempts("nobody@example.com"), "USER_NOT_FOUND")
}
