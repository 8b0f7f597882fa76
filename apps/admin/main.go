package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
	emailsvc "github.com/troopconnect/troopconnect/services/email"
	logsvc "github.com/troopconnect/troopconnect/services/logger"
	"github.com/troopconnect/troopconnect/storage/database"
	sqlxrepos "github.com/troopconnect/troopconnect/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	// set up services
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, appLogger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	accountSvc := account.NewService(conf, sqlxrepos.NewAccountRepository(db), mailSvc, validate)
	memberSvc := member.NewService(
		sqlxrepos.NewMemberRepository(db),
		core.NewSQLTransactor(db),
		accountSvc,
		emailsvc.NewNotifier(mailSvc),
		appLogger,
		validate,
		translator,
		member.NewOptions(conf),
	)

	// start CLI
	cli := commandLine{
		db:         db,
		memberSvc:  memberSvc,
		accountSvc: accountSvc,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
