package journal

// The build journal keeps a row per compilation in whatever SQL database it is pointed at. It
// records what was built and how that went, never the artifacts themselves: those are gone by the
// time the row is written.

import (
	"database/sql"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
	"github.com/tim-hardcastle/cfunc/source/report"

	// SQL drivers

	_ "github.com/go-sql-driver/mysql"  // MariaDB & MySQL
	_ "github.com/lib/pq"               // Postgres
	_ "github.com/microsoft/go-mssqldb" // SQL Server
	_ "github.com/nakagami/firebirdsql" // Firebird
	_ "github.com/sijms/go-ora"         // Oracle
	_ "modernc.org/sqlite"              // SQLite
)

var (
	drivers = map[string]string{"Firebird SQL": "firebirdsql", "MariaDB": "mysql", "MySQL": "mysql",
		"Oracle": "oracle", "Postgres": "postgres", "SQL Server": "sqlserver", "SQLite": "sqlite"}
)

const TABLE = "cfunc_builds"

type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	seq    int64
}

// An Event is one row of the journal.
type Event struct {
	Seq       int64
	Digest    string
	HeaderLen int
	ImplLen   int
	Locals    []string
	Captures  []string
	Outcome   string
	Duration  time.Duration
	At        time.Time
}

// DriverName maps a friendly name such as "Postgres" to its database/sql driver. Driver names are
// accepted as they are.
func DriverName(name string) (string, bool) {
	if d, ok := drivers[name]; ok {
		return d, true
	}
	for _, d := range drivers {
		if d == name {
			return d, true
		}
	}
	return "", false
}

func GetSortedDrivers() []string {
	dr := []string{}
	for k := range drivers {
		dr = append(dr, k)
	}
	sort.Strings(dr)
	return dr
}

// Open connects to the database and makes sure the journal's table exists.
func Open(driver, dsn string) (*Journal, error) {
	name, ok := DriverName(driver)
	if !ok {
		return nil, report.CreateErr("journal/driver", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, report.WrapErr(err, "journal/open")
	}
	if name == "sqlite" {
		// One writer at a time, and a file-less database must not be split across connections.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, report.WrapErr(err, "journal/open")
	}
	j := &Journal{db: db, driver: name}
	if err := j.createTable(); err != nil {
		db.Close()
		return nil, report.WrapErr(err, "journal/open")
	}
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM " + TABLE).Scan(&j.seq); err != nil {
		db.Close()
		return nil, report.WrapErr(err, "journal/open")
	}
	return j, nil
}

func (j *Journal) createTable() error {
	integer := "BIGINT"
	if j.driver == "oracle" {
		integer = "NUMBER(19)"
	}
	columns := `(
    seq ` + integer + ` NOT NULL,
    digest VARCHAR(64) NOT NULL,
    headerLen ` + integer + ` NOT NULL,
    implLen ` + integer + ` NOT NULL,
    locals VARCHAR(4000),
    captures VARCHAR(4000),
    outcome VARCHAR(64) NOT NULL,
    micros ` + integer + ` NOT NULL,
    at ` + integer + ` NOT NULL,
PRIMARY KEY (seq))`
	switch j.driver {
	case "sqlite", "postgres", "mysql":
		_, err := j.db.Exec("CREATE TABLE IF NOT EXISTS " + TABLE + " " + columns)
		return err
	}
	// The rest have no IF NOT EXISTS; an existing table is fine as long as it can be read.
	if _, err := j.db.Exec("CREATE TABLE " + TABLE + " " + columns); err != nil {
		if _, qErr := j.db.Exec("SELECT COUNT(*) FROM " + TABLE); qErr != nil {
			return err
		}
	}
	return nil
}

// placeholders returns n bind parameters in the driver's syntax.
func (j *Journal) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		switch j.driver {
		case "postgres":
			ps[i] = "$" + strconv.Itoa(i+1)
		case "oracle":
			ps[i] = ":" + strconv.Itoa(i+1)
		case "sqlserver":
			ps[i] = "@p" + strconv.Itoa(i+1)
		default:
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

// Record implements cfunc.Recorder.
func (j *Journal) Record(ev cfunc.BuildEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	query := `INSERT INTO ` + TABLE + `(seq, digest, headerLen, implLen, locals, captures, outcome, micros, at)
	VALUES (` + j.placeholders(9) + `)`
	_, err := j.db.Exec(query, j.seq+1, Digest(ev.Header, ev.Impl, ev.Locals, ev.Captures),
		len(ev.Header), len(ev.Impl), strings.Join(ev.Locals, ","), strings.Join(ev.Captures, ","),
		ev.Outcome, ev.Duration.Microseconds(), ev.At.UnixNano())
	if err != nil {
		return report.WrapErr(err, "journal/record")
	}
	j.seq++
	return nil
}

// Events returns every row, oldest first.
func (j *Journal) Events() ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query("SELECT seq, digest, headerLen, implLen, locals, captures, outcome, micros, at FROM " +
		TABLE + " ORDER BY seq")
	if err != nil {
		return nil, errors.Wrap(err, "reading build journal")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var locals, captures sql.NullString
		var micros, at int64
		if err := rows.Scan(&ev.Seq, &ev.Digest, &ev.HeaderLen, &ev.ImplLen, &locals, &captures,
			&ev.Outcome, &micros, &at); err != nil {
			return nil, errors.Wrap(err, "reading build journal")
		}
		ev.Locals = splitNames(locals.String)
		ev.Captures = splitNames(captures.String)
		ev.Duration = time.Duration(micros) * time.Microsecond
		ev.At = time.Unix(0, at).UTC()
		events = append(events, ev)
	}
	return events, errors.Wrap(rows.Err(), "reading build journal")
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Digest is a stable fingerprint of a routine's identity, the same in every process. Fields are
// length-prefixed as in the cache's own key.
func Digest(header, impl []byte, locals, captures []string) string {
	h, _ := blake2b.New256(nil)
	field := func(b []byte) {
		h.Write([]byte(strconv.Itoa(len(b))))
		h.Write([]byte{0})
		h.Write(b)
	}
	field(header)
	field(impl)
	h.Write([]byte("L" + strconv.Itoa(len(locals))))
	for _, name := range locals {
		field([]byte(name))
	}
	h.Write([]byte("C" + strconv.Itoa(len(captures))))
	for _, name := range captures {
		field([]byte(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ cfunc.Recorder = (*Journal)(nil)
