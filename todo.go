/*
	Project: Program Enrollments - bulk registrar enrollments for master's programs
	Consumers: registrar services (staff JWT), admins via apps/admin
*/
package enrollments

/*
TODO: switch back to pressly/goose once RunFS is released upstream (see go.mod)
TODO: run LinkAccounts when the accounts service publishes a "learner account created" event, instead of the admin cmd
TODO: sendgrid webhook to report bounced import reports

------------------------------------ Later ----------------------------------------
- program enrollment status updates (PATCH): needs audit history first
- course enrollment for learners of several programs sharing a course run
*/
