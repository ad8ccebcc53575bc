package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// PgRepository implements Repository on PostgreSQL. All find-or-create and
// batch update contracts are enforced by the database, not by locks in the
// caller: upsert-by-key for users, a unique participants key for rooms and
// a single batched UPDATE for delivery flags.
type PgRepository struct {
	conn *sql.DB
}

func NewPgRepository(dsn string) (*PgRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PgRepository{conn: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (db *PgRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *PgRepository) UpsertUser(params UpsertUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRow(
		"INSERT INTO users (user_id, user_type, preferred_name, first_name, last_name, profile_picture_url, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) "+
			"ON CONFLICT (user_id) DO UPDATE SET "+
			"user_type = EXCLUDED.user_type, preferred_name = EXCLUDED.preferred_name, "+
			"first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, "+
			"profile_picture_url = EXCLUDED.profile_picture_url, updated_at = EXCLUDED.updated_at "+
			"RETURNING user_id, user_type, preferred_name, first_name, last_name, profile_picture_url, created_at, updated_at",
		params.UserId,
		params.UserType,
		params.PreferredName,
		params.FirstName,
		params.LastName,
		params.ProfilePictureUrl,
		now,
	)

	return scanUser(row)
}

func (db *PgRepository) GetUser(userId string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT user_id, user_type, preferred_name, first_name, last_name, profile_picture_url, created_at, updated_at "+
			"FROM users WHERE user_id = $1 LIMIT 1",
		userId,
	)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return u, err
}

func (db *PgRepository) GetUsers(userIds []string) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT user_id, user_type, preferred_name, first_name, last_name, profile_picture_url, created_at, updated_at "+
			"FROM users WHERE user_id = ANY($1)",
		pq.Array(userIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgRepository) CreateRoom(roomId string, participants []string) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (room_id, participants, participants_key, created_at) "+
			"VALUES ($1, $2, $3, $4) "+
			"RETURNING room_id, participants, created_at",
		roomId,
		pq.Array(participants),
		ParticipantsKey(participants),
		time.Now().UTC(),
	)

	room, err := scanRoom(row)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return Room{}, ErrRoomExists
	}

	return room, err
}

// FindOrCreateRoomByParticipants returns the unique room for the given
// participant set, creating it with roomId if none exists. Concurrent calls
// for the same set race on the participants_key constraint and all resolve
// to the single inserted row.
func (db *PgRepository) FindOrCreateRoomByParticipants(roomId string, participants []string) (Room, bool, error) {
	key := ParticipantsKey(participants)

	row := db.conn.QueryRow(
		"INSERT INTO rooms (room_id, participants, participants_key, created_at) "+
			"VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (participants_key) DO NOTHING "+
			"RETURNING room_id, participants, created_at",
		roomId,
		pq.Array(participants),
		key,
		time.Now().UTC(),
	)

	room, err := scanRoom(row)
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Room{}, false, err
	}

	// lost the race or the room predates this call
	row = db.conn.QueryRow(
		"SELECT room_id, participants, created_at FROM rooms WHERE participants_key = $1 LIMIT 1",
		key,
	)
	room, err = scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, false, ErrNotFound
	}

	return room, false, err
}

func (db *PgRepository) GetRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT room_id, participants, created_at FROM rooms WHERE room_id = $1 LIMIT 1",
		roomId,
	)

	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}

	return room, err
}

func (db *PgRepository) ListRoomsForUser(userId string) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT room_id, participants, created_at FROM rooms WHERE $1 = ANY(participants) ORDER BY created_at",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgRepository) CreateMessage(msg Message) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (message_id, room_id, sender, content, image_url, thumbnail_url, audio_url, ts, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) "+
			"RETURNING seq, created_at",
		msg.MessageId,
		msg.RoomId,
		msg.Sender,
		msg.Content,
		msg.ImageUrl,
		msg.ThumbnailUrl,
		msg.AudioUrl,
		msg.Timestamp,
		time.Now().UTC(),
	)

	if err := row.Scan(&msg.Seq, &msg.CreatedAt); err != nil {
		return Message{}, err
	}

	msg.Received = false
	msg.Read = false
	msg.Deleted = false
	return msg, nil
}

const messageColumns = "message_id, room_id, sender, content, image_url, thumbnail_url, audio_url, ts, seq, received, read, deleted, created_at"

// GetMessages returns one page of a room's history in chronological order.
// Page 1 holds the most recent pageSize messages; the page itself is
// selected newest-first and reversed for display.
func (db *PgRepository) GetMessages(roomId string, page, pageSize int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE room_id = $1 ORDER BY ts DESC, seq DESC LIMIT $2 OFFSET $3",
		roomId,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	reverseMessages(msgs)
	return msgs, nil
}

func (db *PgRepository) ListRoomMessages(roomId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages WHERE room_id = $1 ORDER BY ts, seq",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

// MarkMessages advances delivery flags on the batch in one statement. Flags
// only move forward: OR-ing with the current value makes a request to move
// backward a no-op, and marking read also marks received.
func (db *PgRepository) MarkMessages(messageIds []string, received, read bool) (MarkResult, error) {
	rows, err := db.conn.Query(
		"UPDATE messages SET received = received OR $2 OR $3, read = read OR $3 "+
			"WHERE message_id = ANY($1) RETURNING message_id",
		pq.Array(messageIds),
		received,
		read,
	)
	if err != nil {
		return MarkResult{}, err
	}
	defer rows.Close()

	updated := make(map[string]struct{}, len(messageIds))
	var res MarkResult
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return MarkResult{}, err
		}
		updated[id] = struct{}{}
		res.Updated = append(res.Updated, id)
	}
	if err := rows.Err(); err != nil {
		return MarkResult{}, err
	}

	for _, id := range messageIds {
		if _, ok := updated[id]; !ok {
			res.NotFound = append(res.NotFound, id)
		}
	}

	return res, nil
}

func (db *PgRepository) LatestMessages(roomIds []string) (map[string]Message, error) {
	rows, err := db.conn.Query(
		"SELECT DISTINCT ON (room_id) "+messageColumns+" FROM messages "+
			"WHERE room_id = ANY($1) AND NOT deleted ORDER BY room_id, ts DESC, seq DESC",
		pq.Array(roomIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]Message)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		latest[msg.RoomId] = msg
	}

	return latest, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.UserId,
		&u.UserType,
		&u.PreferredName,
		&u.FirstName,
		&u.LastName,
		&u.ProfilePictureUrl,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func scanRoom(row scanner) (Room, error) {
	var r Room
	err := row.Scan(
		&r.RoomId,
		pq.Array(&r.Participants),
		&r.CreatedAt,
	)
	return r, err
}

func scanMessage(row scanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.MessageId,
		&m.RoomId,
		&m.Sender,
		&m.Content,
		&m.ImageUrl,
		&m.ThumbnailUrl,
		&m.AudioUrl,
		&m.Timestamp,
		&m.Seq,
		&m.Received,
		&m.Read,
		&m.Deleted,
		&m.CreatedAt,
	)
	return m, err
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

func reverseMessages(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
