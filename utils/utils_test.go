package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"rescuelink/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestTokenDecoderRoleShapes(t *testing.T) {
	decoder := NewTokenDecoder("")

	single := signToken(t, "any", jwt.MapClaims{"sub": 5, "role": "citizen"})
	claims, err := decoder.Decode(single)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, claims.Role)
	assert.Equal(t, models.ID(5), claims.UserID)

	array := signToken(t, "any", jwt.MapClaims{"sub": "8", "role": []string{"COORDINATOR", "CITIZEN"}})
	claims, err = decoder.Decode("Bearer " + array)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
	assert.Equal(t, models.ID(8), claims.UserID)
}

func TestTokenDecoderRejectsBadTokens(t *testing.T) {
	decoder := NewTokenDecoder("")

	_, err := decoder.Decode("")
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = decoder.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	noRole := signToken(t, "any", jwt.MapClaims{"sub": 1})
	_, err = decoder.Decode(noRole)
	assert.ErrorIs(t, err, ErrRoleMissing)

	emptyRoles := signToken(t, "any", jwt.MapClaims{"sub": 1, "role": []string{}})
	_, err = decoder.Decode(emptyRoles)
	assert.ErrorIs(t, err, ErrRoleMissing)

	noSubject := signToken(t, "any", jwt.MapClaims{"role": "CITIZEN"})
	_, err = decoder.Decode(noSubject)
	assert.ErrorIs(t, err, ErrSubjectMissing)

	named := signToken(t, "any", jwt.MapClaims{"sub": "alice", "role": "CITIZEN"})
	_, err = decoder.Decode(named)
	assert.ErrorIs(t, err, ErrSubjectMissing)

	expired := signToken(t, "any", jwt.MapClaims{"role": "CITIZEN", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err = decoder.Decode(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenDecoderVerifiesSignatureWhenSecretSet(t *testing.T) {
	decoder := NewTokenDecoder("s3cret")

	good := signToken(t, "s3cret", jwt.MapClaims{"role": "RESPONDER", "userId": 3})
	claims, err := decoder.Decode(good)
	require.NoError(t, err)
	assert.Equal(t, models.RoleResponder, claims.Role)
	assert.Equal(t, models.ID(3), claims.UserID)

	forged := signToken(t, "other", jwt.MapClaims{"role": "COORDINATOR"})
	_, err = decoder.Decode(forged)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestServiceErrorLookupThroughWrapping(t *testing.T) {
	base := NewInvalidTransitionError("ASSIGNED", "ON_SITE")
	wrapped := fmt.Errorf("advance mission: %w", base)

	assert.True(t, HasCode(wrapped, ErrCodeInvalidTransition))
	assert.Equal(t, 409, StatusCodeOf(wrapped))
	assert.Equal(t, 500, StatusCodeOf(errors.New("plain")))

	api := NewAPIError(404, "missing")
	assert.True(t, HasCode(api, ErrCodeNotFound))
}

func TestValidationServiceReport(t *testing.T) {
	vs := NewValidationService()

	valid := models.CreateEmergencyReportRequest{
		Description:  "Fire on Elm St",
		Location:     models.ReportLocation{Latitude: 40.7, Longitude: -74.0},
		UrgencyLevel: 3,
		CitizenID:    1,
	}
	assert.NoError(t, vs.Validate(valid))

	invalid := valid
	invalid.UrgencyLevel = 5
	invalid.Location.Latitude = 120
	errs := vs.ValidateStruct(invalid)
	require.Len(t, errs, 2)
	assert.True(t, HasCode(vs.Validate(invalid), ErrCodeValidation))
}

func TestValidationServiceStatuses(t *testing.T) {
	vs := NewValidationService()

	assert.NoError(t, vs.Validate(models.UpdateMissionStatusRequest{Status: models.MissionStatusOnSite}))
	assert.Error(t, vs.Validate(models.UpdateMissionStatusRequest{Status: "PARKED"}))
	assert.Error(t, vs.Validate(models.UpdateEmergencyStatusRequest{Status: "CLOSED"}))
}

func TestFormatCoordinate(t *testing.T) {
	assert.Equal(t, "40.7000, -74.0000", FormatCoordinate(40.7, -74.0))
	assert.True(t, IsValidCoordinate(40.7, -74.0))
	assert.False(t, IsValidCoordinate(91, 0))
	assert.InDelta(t, 0, CalculateDistance(1, 1, 1, 1), 1e-9)
}
