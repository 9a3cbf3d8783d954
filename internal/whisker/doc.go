// Package whisker is a small client for the Whisker (Litter-Robot) cloud.
//
// Login goes through the account's Cognito user pool (USER_PASSWORD_AUTH);
// the user id is read from the id token claims. Robots and their activity
// come from the Litter-Robot 4 GraphQL API.
//
// Only what the watcher needs is implemented: list robots, read activity.
package whisker
