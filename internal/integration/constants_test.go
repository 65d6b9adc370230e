package integration_test

const (
	dbName           = "cinex_booking"
	dbUser           = "test_user"
	dbPassword       = "test_password"
	dbImageName      = "postgres:17-alpine"
	cacheImageName   = "redis:7"
	migrationsSource = "file://../../migrations"

	TestUserId         = 1
	TestUsername       = "alice"
	TestRivalUsername  = "bob"
	TestWeekendShowId  = 1
	TestHolidayShowId  = 2
	TestWeekendShowDay = "2025-10-04"
	TestHolidayShowDay = "2025-12-25"
)

var dataFiles = map[string]string{
	"movies.txt":   "1|Dune|Sci-Fi|155|8.5|100000\n",
	"schedule.txt": "1|1|Studio 1|" + TestWeekendShowDay + "|19:00|80|80\n2|1|Studio 2|" + TestHolidayShowDay + "|21:00|80|80\n",
	"users.txt":    "1|alice|secret|Alice|customer\n2|bob|secret|Bob|customer\n",
}
