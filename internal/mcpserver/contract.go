package mcpserver

// MedicationContract describes the fields an LLM client must supply when
// adding or editing medications and logging doses.
const MedicationContract = `# DoseWise Medication Contract

## Adding a medication (` + "`add_medication`" + `)

| Field     | Required | Format                                                        |
|-----------|----------|---------------------------------------------------------------|
| name      | yes      | Free text, 1-200 characters. Used for interaction lookups.    |
| dosage    | yes      | Free text, e.g. ` + "`500mg`" + `, ` + "`2 tablets`" + `.                          |
| frequency | no       | ` + "`once_daily`" + ` (default), ` + "`twice_daily`" + `, ` + "`three_times`" + `, ` + "`as_needed`" + ` |
| schedule  | no       | Local time ` + "`HH:MM`" + ` (24h). Empty means no timed reminder.    |
| color     | no       | ` + "`white`" + ` (default), blue, red, yellow, green, orange, pink, purple |
| notes     | no       | Free text.                                                    |

Adding returns the stored record and any interactions with medications
already on the list. Interactions are reported, never blocking.

## Logging a dose (` + "`log_dose`" + `)

- ` + "`status`" + ` is ` + "`taken`" + ` or ` + "`skipped`" + `.
- A dose belongs to the local calendar day it is logged on.
- Only the first status for a medication on a day counts. Logging again
  appends history but does not change today's status.

## Attachments (` + "`attach_file`" + `)

- Accepts a ` + "`data:`" + ` URI or an http(s) URL.
- Supported formats: png, jpg, jpeg, gif, webp, pdf. Max 5 MB.
- The file is stored inline on the medication and replaces any previous one.

## Interactions

Lookups use a small static table of drug pairs (see the
` + "`dosewise://interaction-rules`" + ` resource). Names are matched
case-insensitively. The table is informational and is not a clinical source.
`
