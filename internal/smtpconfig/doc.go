// Package smtpconfig reconciles a device's SMTP settings against a desired
// state.
//
// The device exposes its SMTP settings as a single JSON resource at
// /api/v1/smtp. The Reconciler fetches it, compares it field by field with
// the caller's desired SMTPConfig and, when they differ, replaces it with one
// PUT carrying the full desired object.
//
// # Absent Fields
//
// Every SMTPConfig field is a pointer. A nil field is "absent": it is sent as
// JSON null and compares unequal to any present value, including zero values
// such as false, 0 or "". Unset fields are never defaulted, so the PUT is a
// full replace. Use MergeUnset (CLI: --keep-unset) to carry unset fields over
// from the current configuration instead.
//
// # Dry Run
//
// With Options.DryRun the Reconciler reports what would change without
// sending the PUT (or DELETE).
//
// # Usage Example
//
//	rec := smtpconfig.NewReconciler(client)
//
//	desired := smtpconfig.SMTPConfig{
//	    Enabled: smtpconfig.Bool(true),
//	    Port:    smtpconfig.Int(25),
//	    Server:  smtpconfig.String("smtp.example.com"),
//	}
//
//	result, err := rec.Reconcile(ctx, desired, smtpconfig.Options{DryRun: true})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Message)
//
// # Secrets
//
// The password is never included in String, log fields, Redacted copies or
// Diff output.
package smtpconfig
