package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlight-billing/internal/domain"
)

func TestLock_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLock(db, "bill:1", "token")

	mock.ExpectSetNX("bill:1", "token", 5*time.Second).SetVal(true)

	assert.NoError(t, l.Lock(context.Background(), 5*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_Lock_Held(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLock(db, "bill:1", "token")

	mock.ExpectSetNX("bill:1", "token", 5*time.Second).SetVal(false)

	err := l.Lock(context.Background(), 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_Unlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLock(db, "bill:1", "token")

	mock.ExpectEval(unlockScript, []string{"bill:1"}, "token").SetVal(int64(1))
	assert.NoError(t, l.Unlock(context.Background()))

	mock.ExpectEval(unlockScript, []string{"bill:1"}, "token").SetVal(int64(0))
	assert.EqualError(t, l.Unlock(context.Background()),
		"unlock failed, lock for key bill:1 expired or is held by another owner")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLock_Extend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLock(db, "bill:1", "token")

	mock.ExpectEval(extendScript, []string{"bill:1"}, "token", "10000").SetVal(int64(1))

	assert.NoError(t, l.Extend(context.Background(), 10*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMiniredisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "billing:", 5*time.Second, 50*time.Millisecond), mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := newMiniredisLocker(t)

	release, err := locker.Acquire(context.Background(), TransactionKey("t1"), BillKey("b1"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("billing:bill:b1"))
	assert.True(t, mr.Exists("billing:transaction:t1"))

	release()
	release()
	assert.False(t, mr.Exists("billing:bill:b1"))
	assert.False(t, mr.Exists("billing:transaction:t1"))
}

func TestRedisLocker_ContentionReturnsLockHeld(t *testing.T) {
	locker, mr := newMiniredisLocker(t)

	release, err := locker.Acquire(context.Background(), BillKey("b2"))
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), BillKey("b1"), BillKey("b2"))
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	// the partially acquired key is rolled back
	assert.False(t, mr.Exists("billing:bill:b1"))
}
