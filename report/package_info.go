// Package report contains the data model of a finished test report: a tree of suites, the
// test records inside them, and the HTTP transactions captured while each test was running.
//
// A Tree is produced once by the report builder and is not modified afterward. ToValue converts
// it to the nested mapping that interpreters encode, and TreeFromValue reverses that.
package report
